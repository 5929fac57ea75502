package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func parseString(raw json.RawMessage, field string) (string, error) {
	if raw == nil {
		return "", nil
	}
	value, _, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return value, nil
}

// parseSecret requires an env reference. Optional secrets resolve to "" when
// the referenced variable is unset.
func parseSecret(raw json.RawMessage, field string, optional bool) (Secret, error) {
	if raw == nil {
		return "", nil
	}
	value, isRef, err := ParseConfigValue(raw)
	if err != nil {
		if optional && errors.Is(err, ErrEnvNotSet) {
			return "", nil
		}
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	if !isRef {
		return "", fmt.Errorf("%s must use environment variable reference {\"$env\": \"VAR_NAME\"} for security", field)
	}
	return Secret(value), nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseURL   json.RawMessage `json:"baseURL"`
		Addr      json.RawMessage `json:"addr"`
		Name      string          `json:"name"`
		StaticDir string          `json:"staticDir"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.BaseURL, err = parseString(raw.BaseURL, "baseURL"); err != nil {
		return err
	}
	if s.Addr, err = parseString(raw.Addr, "addr"); err != nil {
		return err
	}
	s.Name = raw.Name
	s.StaticDir = raw.StaticDir
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Secret json.RawMessage `json:"secret"`
		TTL    string          `json:"ttl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.Secret, err = parseSecret(raw.Secret, "session.secret", false); err != nil {
		return err
	}
	if s.TTL, err = parseDuration(raw.TTL, "session.ttl"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SteamConfig
func (s *SteamConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIKey json.RawMessage `json:"apiKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	s.APIKey, err = parseSecret(raw.APIKey, "steam.apiKey", true)
	return err
}

// UnmarshalJSON implements custom unmarshaling for EpicConfig
func (e *EpicConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		LauncherURL  json.RawMessage `json:"launcherUrl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if e.ClientID, err = parseString(raw.ClientID, "epic.clientId"); err != nil {
		if !errors.Is(err, ErrEnvNotSet) {
			return err
		}
		e.ClientID = ""
	}
	if e.ClientSecret, err = parseSecret(raw.ClientSecret, "epic.clientSecret", true); err != nil {
		return err
	}
	if e.LauncherURL, err = parseString(raw.LauncherURL, "epic.launcherUrl"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for LedgerConfig
func (l *LedgerConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Storage             LedgerStorage   `json:"storage"`
		TTL                 string          `json:"ttl"`
		RedisAddr           json.RawMessage `json:"redisAddr"`
		RedisPassword       json.RawMessage `json:"redisPassword"`
		RedisDB             int             `json:"redisDb"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
		CredentialsFile     string          `json:"credentialsFile"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.Storage = raw.Storage
	l.RedisDB = raw.RedisDB
	l.FirestoreDatabase = raw.FirestoreDatabase
	l.FirestoreCollection = raw.FirestoreCollection
	l.CredentialsFile = raw.CredentialsFile

	var err error
	if l.TTL, err = parseDuration(raw.TTL, "ledger.ttl"); err != nil {
		return err
	}
	if l.RedisAddr, err = parseString(raw.RedisAddr, "ledger.redisAddr"); err != nil {
		return err
	}
	if l.RedisPassword, err = parseSecret(raw.RedisPassword, "ledger.redisPassword", true); err != nil {
		return err
	}
	if l.GCPProject, err = parseString(raw.GCPProject, "ledger.gcpProject"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for CatalogConfig
func (c *CatalogConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		CacheTTL    string `json:"cacheTtl"`
		EnrichLimit int    `json:"enrichLimit"`
		EnrichDelay string `json:"enrichDelay"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.EnrichLimit = raw.EnrichLimit
	var err error
	if c.CacheTTL, err = parseDuration(raw.CacheTTL, "catalog.cacheTtl"); err != nil {
		return err
	}
	if c.EnrichDelay, err = parseDuration(raw.EnrichDelay, "catalog.enrichDelay"); err != nil {
		return err
	}
	return nil
}
