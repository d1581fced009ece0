package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	KeySourceFile = "file"
	KeySourceEnv  = "env"

	// DataKeyEnv holds the base64 data key when KeySource is env
	DataKeyEnv = "JOURNAL_DATA_KEY"
)

type Config struct {
	// Database configuration
	DBPath          string `envconfig:"DB_PATH" default:"./data/journal.db"`
	DBEncryptionKey string `envconfig:"DB_ENCRYPTION_KEY"`

	// Field/media encryption keystore: "file" wraps the key under a passphrase,
	// "env" reads a base64 key from JOURNAL_DATA_KEY
	KeySource     string `envconfig:"KEY_SOURCE" default:"file"`
	KeyFile       string `envconfig:"KEY_FILE" default:"./data/journal.key"`
	KeyPassphrase string `envconfig:"KEY_PASSPHRASE"`

	// Storage locations
	MediaDir  string `envconfig:"MEDIA_DIR" default:"./data/media"`
	ExportDir string `envconfig:"EXPORT_DIR" default:"./exports"`

	// Retention
	ExportRetentionDays       int `envconfig:"EXPORT_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int `envconfig:"NOTIFICATION_RETENTION_DAYS" default:"90"`

	// Notification log
	NotifyAsync bool `envconfig:"NOTIFY_ASYNC" default:"false"`

	// Live query refresh throttling
	StreamRefreshRPS   int `envconfig:"STREAM_REFRESH_RPS" default:"20"`
	StreamRefreshBurst int `envconfig:"STREAM_REFRESH_BURST" default:"5"`

	// Application settings
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment, after an optional .env file
func Load() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("JOURNAL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewForTesting returns a config rooted in dir with a fixed passphrase
func NewForTesting(dir string) *Config {
	return &Config{
		DBPath:                    filepath.Join(dir, "journal.db"),
		KeySource:                 KeySourceFile,
		KeyFile:                   filepath.Join(dir, "journal.key"),
		KeyPassphrase:             "correct horse battery staple",
		MediaDir:                  filepath.Join(dir, "media"),
		ExportDir:                 filepath.Join(dir, "exports"),
		ExportRetentionDays:       30,
		NotificationRetentionDays: 90,
		StreamRefreshRPS:          1000,
		StreamRefreshBurst:        100,
		Environment:               "testing",
		LogLevel:                  "debug",
	}
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("JOURNAL_DB_PATH is required")
	}

	// The page key is optional, but a short one is a misconfiguration
	if c.DBEncryptionKey != "" && len(c.DBEncryptionKey) < 32 {
		return fmt.Errorf("JOURNAL_DB_ENCRYPTION_KEY must be at least 32 characters")
	}

	switch c.KeySource {
	case KeySourceFile:
		if c.KeyFile == "" {
			return fmt.Errorf("JOURNAL_KEY_FILE is required")
		}

		if c.KeyPassphrase == "" {
			return fmt.Errorf("JOURNAL_KEY_PASSPHRASE is required")
		}

		if len(c.KeyPassphrase) < 12 {
			return fmt.Errorf("JOURNAL_KEY_PASSPHRASE must be at least 12 characters")
		}
	case KeySourceEnv:
	default:
		return fmt.Errorf("JOURNAL_KEY_SOURCE must be %q or %q", KeySourceFile, KeySourceEnv)
	}

	if c.StreamRefreshRPS <= 0 || c.StreamRefreshBurst <= 0 {
		return fmt.Errorf("stream refresh rate and burst must be positive")
	}

	if c.ExportRetentionDays < 0 || c.NotificationRetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	return nil
}

// NotificationRetention returns the notification log retention window
func (c *Config) NotificationRetention() time.Duration {
	return time.Duration(c.NotificationRetentionDays) * 24 * time.Hour
}
