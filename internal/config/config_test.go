package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, DevJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 70.0, cfg.Alert.LowThreshold)
	assert.Equal(t, 200.0, cfg.Alert.HighThreshold)
	assert.False(t, cfg.Alert.AlertOnSynced)
	assert.Equal(t, 24*time.Hour, cfg.Dexcom.Lookback)
	assert.Equal(t, 20*time.Second, cfg.Dexcom.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Summary.Window)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_SECRET", "a-very-long-test-secret-value")
	t.Setenv("ALERT_ON_SYNCED", "true")
	t.Setenv("ALERT_LOW_THRESHOLD", "65.5")
	t.Setenv("DEXCOM_LOOKBACK", "48h")
	t.Setenv("DEXCOM_BASE_URL", "https://sandbox-api.dexcom.com/")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.True(t, cfg.Alert.AlertOnSynced)
	assert.Equal(t, 65.5, cfg.Alert.LowThreshold)
	assert.Equal(t, 48*time.Hour, cfg.Dexcom.Lookback)
	assert.Equal(t, "https://sandbox-api.dexcom.com", cfg.Dexcom.BaseURL)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_CollectsMalformedValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("ALERT_ON_SYNCED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "ALERT_ON_SYNCED")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Setenv("JWT_SECRET", "")
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"lookback beyond provider limit", func(c *Config) { c.Dexcom.Lookback = 31 * 24 * time.Hour }, "DEXCOM_LOOKBACK"},
		{"thresholds inverted", func(c *Config) { c.Alert.LowThreshold = 250 }, "ALERT_LOW_THRESHOLD"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT_SECRET"},
		{"unknown assistant", func(c *Config) { c.Assistant.Provider = "llama" }, "ASSISTANT_PROVIDER"},
		{"zero attempts", func(c *Config) { c.Notify.MaxAttempts = 0 }, "NOTIFY_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMasked_HidesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-abcdefghijklmnop")
	cfg, err := Load()
	require.NoError(t, err)

	for _, kv := range cfg.Masked() {
		if kv[0] == "OPENAI_API_KEY" {
			assert.Equal(t, "sk-a****", kv[1])
		}
		assert.False(t, strings.Contains(kv[1], "abcdefghijklmnop"), "%s leaked", kv[0])
	}
}
