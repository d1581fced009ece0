package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JOURNAL_DB_PATH", "/tmp/j.db")
	t.Setenv("JOURNAL_KEY_PASSPHRASE", "a-long-enough-passphrase")
	t.Setenv("JOURNAL_EXPORT_RETENTION_DAYS", "7")
	t.Setenv("JOURNAL_NOTIFY_ASYNC", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/j.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.ExportRetentionDays)
	assert.True(t, cfg.NotifyAsync)
	assert.Equal(t, "./data/media", cfg.MediaDir)
	assert.Equal(t, 20, cfg.StreamRefreshRPS)
	assert.Equal(t, 90*24*time.Hour, cfg.NotificationRetention())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing passphrase", func(c *Config) { c.KeyPassphrase = "" }, "JOURNAL_KEY_PASSPHRASE is required"},
		{"short passphrase", func(c *Config) { c.KeyPassphrase = "short" }, "at least 12 characters"},
		{"short page key", func(c *Config) { c.DBEncryptionKey = "tooshort" }, "at least 32 characters"},
		{"zero refresh rate", func(c *Config) { c.StreamRefreshRPS = 0 }, "must be positive"},
		{"env key source needs no passphrase", func(c *Config) { c.KeySource = KeySourceEnv; c.KeyPassphrase = "" }, ""},
		{"unknown key source", func(c *Config) { c.KeySource = "vault" }, "JOURNAL_KEY_SOURCE"},
		{"negative retention", func(c *Config) { c.ExportRetentionDays = -1 }, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewForTesting(t.TempDir())
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
