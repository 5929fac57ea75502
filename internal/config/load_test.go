package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("GAMEFRONT_BASE_URL", "")
	t.Setenv("TEST_SESSION_SECRET", testSecret)
	t.Setenv("TEST_STEAM_KEY", "steam-key")
	t.Setenv("TEST_EPIC_ID", "epic-id")
	t.Setenv("TEST_EPIC_SECRET", "epic-secret")

	path := writeConfig(t, `{
		"version": "gamefront/v1",
		"server": {"baseURL": "https://games.example.com/", "addr": ":9000"},
		"session": {"secret": {"$env": "TEST_SESSION_SECRET"}, "ttl": "48h"},
		"steam": {"apiKey": {"$env": "TEST_STEAM_KEY"}},
		"epic": {"clientId": {"$env": "TEST_EPIC_ID"}, "clientSecret": {"$env": "TEST_EPIC_SECRET"}, "launcherUrl": "https://launcher-staging.example.com"},
		"ledger": {"storage": "memory"},
		"catalog": {"cacheTtl": "1m"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://games.example.com", cfg.Server.BaseURL)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, DefaultName, cfg.Server.Name)
	assert.Equal(t, Secret(testSecret), cfg.Session.Secret)
	assert.Equal(t, 48*time.Hour, cfg.Session.TTL)
	assert.Equal(t, Secret("steam-key"), cfg.Steam.APIKey)
	assert.Equal(t, "epic-id", cfg.Epic.ClientID)
	assert.Equal(t, Secret("epic-secret"), cfg.Epic.ClientSecret)
	assert.Equal(t, "https://launcher-staging.example.com", cfg.Epic.LauncherURL)
	assert.Equal(t, LedgerStorageMemory, cfg.Ledger.Storage)
	assert.Equal(t, DefaultLedgerTTL, cfg.Ledger.TTL)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, DefaultEnrichLimit, cfg.Catalog.EnrichLimit)
	assert.Equal(t, DefaultEnrichDelay, cfg.Catalog.EnrichDelay)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	tests := []struct {
		name        string
		content     string
		expectError string
	}{
		{
			name:        "missing_version",
			content:     `{"session": {"secret": {"$env": "TEST_SESSION_SECRET"}}}`,
			expectError: "config version is required",
		},
		{
			name:        "wrong_version",
			content:     `{"version": "v0", "session": {"secret": {"$env": "TEST_SESSION_SECRET"}}}`,
			expectError: "unsupported config version",
		},
		{
			name:        "plain_text_secret",
			content:     `{"version": "gamefront/v1", "session": {"secret": "` + testSecret + `"}}`,
			expectError: "must use environment variable reference",
		},
		{
			name:        "unset_required_secret",
			content:     `{"version": "gamefront/v1", "session": {"secret": {"$env": "GAMEFRONT_TEST_UNSET_VAR"}}}`,
			expectError: "environment variable not set",
		},
		{
			name:        "short_secret",
			content:     `{"version": "gamefront/v1", "session": {"secret": {"$env": "TEST_SHORT_SECRET"}}}`,
			expectError: "at least 32 characters",
		},
		{
			name:        "bad_storage",
			content:     `{"version": "gamefront/v1", "session": {"secret": {"$env": "TEST_SESSION_SECRET"}}, "ledger": {"storage": "postgres"}}`,
			expectError: "ledger.storage has invalid value",
		},
		{
			name:        "redis_without_addr",
			content:     `{"version": "gamefront/v1", "session": {"secret": {"$env": "TEST_SESSION_SECRET"}}, "ledger": {"storage": "redis"}}`,
			expectError: "ledger.redisAddr is required",
		},
		{
			name:        "bad_duration",
			content:     `{"version": "gamefront/v1", "session": {"secret": {"$env": "TEST_SESSION_SECRET"}, "ttl": "forever"}}`,
			expectError: "parsing session.ttl",
		},
	}

	t.Setenv("TEST_SHORT_SECRET", "short")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestLoad_OptionalSecretsMayBeUnset(t *testing.T) {
	t.Setenv("TEST_SESSION_SECRET", testSecret)

	cfg, err := Load(writeConfig(t, `{
		"version": "gamefront/v1",
		"session": {"secret": {"$env": "TEST_SESSION_SECRET"}},
		"steam": {"apiKey": {"$env": "GAMEFRONT_TEST_UNSET_STEAM"}},
		"epic": {"clientId": {"$env": "GAMEFRONT_TEST_UNSET_EPIC_ID"}, "clientSecret": {"$env": "GAMEFRONT_TEST_UNSET_EPIC"}}
	}`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Steam.APIKey)
	assert.Empty(t, cfg.Epic.ClientID)
	assert.Empty(t, cfg.Epic.ClientSecret)
	assert.Equal(t, LedgerStorageCookie, cfg.Ledger.Storage)
}

func TestBaseURLOverride(t *testing.T) {
	t.Setenv("TEST_SESSION_SECRET", testSecret)
	t.Setenv("GAMEFRONT_BASE_URL", "https://preview.example.dev/")

	cfg, err := Load(writeConfig(t, `{
		"version": "gamefront/v1",
		"server": {"baseURL": "https://games.example.com"},
		"session": {"secret": {"$env": "TEST_SESSION_SECRET"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "https://preview.example.dev", cfg.Server.BaseURL)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GAMEFRONT_BASE_URL", "")
	t.Setenv("BASE_URL", "http://localhost:4000")
	t.Setenv("ADDR", ":4000")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STEAM_API_KEY", "k")
	t.Setenv("EPIC_CLIENT_ID", "id")
	t.Setenv("EPIC_CLIENT_SECRET", "s")
	t.Setenv("EPIC_LAUNCHER_URL", "")
	t.Setenv("LEDGER_STORAGE", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SESSION_TTL", "1h")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", cfg.Server.BaseURL)
	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, LedgerStorageRedis, cfg.Ledger.Storage)
	assert.Equal(t, "localhost:6379", cfg.Ledger.RedisAddr)
	assert.Equal(t, 2, cfg.Ledger.RedisDB)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, "id", cfg.Epic.ClientID)
	assert.Empty(t, cfg.Epic.LauncherURL)
}

func TestFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.secret")
}

func TestValidateFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		result, err := ValidateFile(writeConfig(t, `{
			"version": "gamefront/v1",
			"server": {"baseURL": "https://games.example.com", "addr": ":3000"},
			"session": {"secret": {"$env": "SESSION_SECRET"}},
			"epic": {"clientId": "abc", "clientSecret": {"$env": "EPIC_CLIENT_SECRET"}}
		}`))
		require.NoError(t, err)
		assert.True(t, result.IsValid())
		assert.Empty(t, result.Warnings)
	})

	t.Run("plain_and_bash_secrets", func(t *testing.T) {
		result, err := ValidateFile(writeConfig(t, `{
			"version": "gamefront/v1",
			"server": {"baseURL": "https://games.example.com"},
			"session": {"secret": "$SESSION_SECRET"},
			"steam": {"apiKey": "literal"}
		}`))
		require.NoError(t, err)
		require.Len(t, result.Errors, 2)
		paths := []string{result.Errors[0].Path, result.Errors[1].Path}
		assert.ElementsMatch(t, []string{"session.secret", "steam.apiKey"}, paths)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("invalid_json", func(t *testing.T) {
		result, err := ValidateFile(writeConfig(t, `{`))
		require.NoError(t, err)
		assert.False(t, result.IsValid())
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := ValidateFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
