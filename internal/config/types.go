package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ConfigVersion is the only config file version this build understands
const ConfigVersion = "gamefront/v1"

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// LedgerStorage selects where linked accounts are kept
type LedgerStorage string

const (
	LedgerStorageCookie    LedgerStorage = "cookie"
	LedgerStorageMemory    LedgerStorage = "memory"
	LedgerStorageRedis     LedgerStorage = "redis"
	LedgerStorageFirestore LedgerStorage = "firestore"
)

// ServerConfig is the HTTP listener configuration
type ServerConfig struct {
	BaseURL   string `json:"baseURL"`
	Addr      string `json:"addr"`
	Name      string `json:"name"`
	StaticDir string `json:"staticDir,omitempty"`
}

// SessionConfig configures the session cookie. Secret also seeds the handoff
// signing key and the cookie encryption key.
type SessionConfig struct {
	Secret Secret        `json:"secret"`
	TTL    time.Duration `json:"ttl"`
}

// SteamConfig holds the Steam Web API key. An empty key is allowed at load time;
// the callback reports it as a configuration error.
type SteamConfig struct {
	APIKey Secret `json:"apiKey"`
}

// EpicConfig holds the Epic Games OAuth client registration
type EpicConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	LauncherURL  string `json:"launcherUrl,omitempty"` // defaults to https://launcher.epicgames.com
}

// LedgerConfig selects and configures the linked-account backend
type LedgerConfig struct {
	Storage             LedgerStorage `json:"storage"`
	TTL                 time.Duration `json:"ttl"`
	RedisAddr           string        `json:"redisAddr,omitempty"`
	RedisPassword       Secret        `json:"redisPassword,omitempty"`
	RedisDB             int           `json:"redisDb,omitempty"`
	GCPProject          string        `json:"gcpProject,omitempty"`
	FirestoreDatabase   string        `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string        `json:"firestoreCollection,omitempty"`
	CredentialsFile     string        `json:"credentialsFile,omitempty"`
}

// CatalogConfig tunes the catalog fetchers
type CatalogConfig struct {
	CacheTTL    time.Duration `json:"cacheTtl"`
	EnrichLimit int           `json:"enrichLimit"`
	EnrichDelay time.Duration `json:"enrichDelay"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version string        `json:"version"`
	Server  ServerConfig  `json:"server"`
	Session SessionConfig `json:"session"`
	Steam   SteamConfig   `json:"steam"`
	Epic    EpicConfig    `json:"epic"`
	Ledger  LedgerConfig  `json:"ledger"`
	Catalog CatalogConfig `json:"catalog"`
}

// ErrEnvNotSet is returned when an {"$env": ...} reference names an unset variable
var ErrEnvNotSet = errors.New("environment variable not set")

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference. It reports whether the value was a reference.
//
// The explicit JSON syntax is used instead of $VAR substitution so that shell
// tooling never expands config values before gamefront reads them.
func ParseConfigValue(raw json.RawMessage) (value string, isRef bool, err error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, false, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", false, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", false, fmt.Errorf("unknown reference type in config value")
	}
	value = os.Getenv(envVar)
	if value == "" {
		return "", true, fmt.Errorf("%w: %s", ErrEnvNotSet, envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, true, nil
}
