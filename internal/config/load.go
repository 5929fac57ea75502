package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgellow/gamefront/internal/envutil"
	"github.com/dgellow/gamefront/internal/log"
)

// Defaults applied to any zero-valued setting
const (
	DefaultAddr        = ":3000"
	DefaultName        = "gamefront"
	DefaultBaseURL     = "http://localhost:3000"
	DefaultSessionTTL  = 30 * 24 * time.Hour
	DefaultLedgerTTL   = 365 * 24 * time.Hour
	DefaultCacheTTL    = 5 * time.Minute
	DefaultEnrichLimit = 50
	DefaultEnrichDelay = 200 * time.Millisecond

	minSecretLength = 32
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != ConfigVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	finalize(&config)
	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FromEnv builds the configuration purely from environment variables
func FromEnv() (Config, error) {
	config := Config{
		Version: ConfigVersion,
		Server: ServerConfig{
			BaseURL:   os.Getenv("BASE_URL"),
			Addr:      os.Getenv("ADDR"),
			StaticDir: os.Getenv("STATIC_DIR"),
		},
		Session: SessionConfig{
			Secret: Secret(os.Getenv("SESSION_SECRET")),
		},
		Steam: SteamConfig{
			APIKey: Secret(os.Getenv("STEAM_API_KEY")),
		},
		Epic: EpicConfig{
			ClientID:     os.Getenv("EPIC_CLIENT_ID"),
			ClientSecret: Secret(os.Getenv("EPIC_CLIENT_SECRET")),
			LauncherURL:  os.Getenv("EPIC_LAUNCHER_URL"),
		},
		Ledger: LedgerConfig{
			Storage:             LedgerStorage(os.Getenv("LEDGER_STORAGE")),
			RedisAddr:           os.Getenv("REDIS_ADDR"),
			RedisPassword:       Secret(os.Getenv("REDIS_PASSWORD")),
			GCPProject:          os.Getenv("FIRESTORE_PROJECT"),
			FirestoreDatabase:   os.Getenv("FIRESTORE_DATABASE"),
			FirestoreCollection: os.Getenv("FIRESTORE_COLLECTION"),
			CredentialsFile:     os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing REDIS_DB: %w", err)
		}
		config.Ledger.RedisDB = db
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{"SESSION_TTL", &config.Session.TTL},
		{"LEDGER_TTL", &config.Ledger.TTL},
		{"CATALOG_CACHE_TTL", &config.Catalog.CacheTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(os.Getenv(d.env), d.env)
		if err != nil {
			return Config{}, err
		}
		*d.target = v
	}

	finalize(&config)
	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// finalize applies defaults and the base URL override
func finalize(config *Config) {
	if override := envutil.BaseURLOverride(); override != "" {
		log.LogInfoWithFields("config", "Base URL overridden from environment", map[string]any{
			"configured": config.Server.BaseURL,
			"override":   override,
		})
		config.Server.BaseURL = override
	}
	if config.Server.BaseURL == "" {
		config.Server.BaseURL = DefaultBaseURL
	}
	config.Server.BaseURL = strings.TrimRight(config.Server.BaseURL, "/")

	if config.Server.Addr == "" {
		config.Server.Addr = DefaultAddr
	}
	if config.Server.Name == "" {
		config.Server.Name = DefaultName
	}
	if config.Session.TTL == 0 {
		config.Session.TTL = DefaultSessionTTL
	}
	if config.Ledger.Storage == "" {
		config.Ledger.Storage = LedgerStorageCookie
	}
	if config.Ledger.TTL == 0 {
		config.Ledger.TTL = DefaultLedgerTTL
	}
	if config.Catalog.CacheTTL == 0 {
		config.Catalog.CacheTTL = DefaultCacheTTL
	}
	if config.Catalog.EnrichLimit == 0 {
		config.Catalog.EnrichLimit = DefaultEnrichLimit
	}
	if config.Catalog.EnrichDelay == 0 {
		config.Catalog.EnrichDelay = DefaultEnrichDelay
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	u, err := url.Parse(config.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.baseURL must be an absolute URL, got %q", config.Server.BaseURL)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if len(config.Session.Secret) < minSecretLength {
		return fmt.Errorf("session.secret must be at least %d characters (got %d). Generate with: openssl rand -base64 32", minSecretLength, len(config.Session.Secret))
	}
	if config.Session.TTL < 0 {
		return fmt.Errorf("session.ttl cannot be negative")
	}

	switch config.Ledger.Storage {
	case LedgerStorageCookie, LedgerStorageMemory:
	case LedgerStorageRedis:
		if config.Ledger.RedisAddr == "" {
			return fmt.Errorf("ledger.redisAddr is required when using redis storage")
		}
	case LedgerStorageFirestore:
		if config.Ledger.GCPProject == "" {
			return fmt.Errorf("ledger.gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("ledger.storage has invalid value: %s (cookie, memory, redis or firestore)", config.Ledger.Storage)
	}
	if config.Ledger.TTL < 0 {
		return fmt.Errorf("ledger.ttl cannot be negative")
	}

	if config.Catalog.EnrichLimit < 0 {
		return fmt.Errorf("catalog.enrichLimit cannot be negative")
	}

	if config.Steam.APIKey == "" {
		log.LogWarn("Steam API key is not configured - Steam sign-in will fail")
	}
	if config.Epic.ClientID == "" || config.Epic.ClientSecret == "" {
		log.LogWarn("Epic Games client credentials are not configured - Epic sign-in will fail")
	}

	return nil
}
