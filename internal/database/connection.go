package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

type Config struct {
	Path          string
	EncryptionKey string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MaxIdleTime   time.Duration
}

// DefaultConfig returns pool settings for a single-device journal database
func DefaultConfig(path, encryptionKey string) Config {
	return Config{
		Path:          path,
		EncryptionKey: encryptionKey,
		MaxOpenConns:  8,
		MaxIdleConns:  2,
		MaxLifetime:   1 * time.Hour,
		MaxIdleTime:   10 * time.Minute,
	}
}

// Connect opens the journal database. When EncryptionKey is set the file is
// encrypted page by page with SQLCipher.
func Connect(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure data directory exists with secure permissions
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	// Verify connection and encryption
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	// Set secure file permissions
	if err := os.Chmod(cfg.Path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}

	return db, nil
}

func buildDSN(cfg Config) string {
	params := []string{
		"_journal_mode=WAL",
		"_busy_timeout=5000",
		"_foreign_keys=ON",
		"_txlock=immediate",
	}

	if cfg.EncryptionKey != "" {
		params = append([]string{
			"_pragma_key=" + url.QueryEscape(cfg.EncryptionKey),
			"_pragma_cipher_page_size=4096",
			"_pragma_kdf_iter=256000",
		}, params...)
	}

	return fmt.Sprintf("file:%s?%s", cfg.Path, strings.Join(params, "&"))
}

// configurePragmas sets database-wide settings that persist in the file
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA secure_delete = ON",
		"PRAGMA auto_vacuum = INCREMENTAL",
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}
