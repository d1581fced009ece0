package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Connect(DefaultConfig(filepath.Join(t.TempDir(), "journal.db"), ""))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestMigrator(t *testing.T, db *sql.DB) *Migrator {
	t.Helper()
	m, err := NewMigrator(db, Chain(), zerolog.Nop())
	require.NoError(t, err)
	return m
}

// checkTableExists is a test helper to verify if a table exists in the database.
func checkTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, tableName).Scan(&name)
	require.NoError(t, err, "table %s should exist", tableName)
	assert.Equal(t, tableName, name)
}

func TestMigrateNewDatabase(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestMigrator(t, db)

	require.NoError(t, m.Migrate(ctx))

	for _, table := range []string{
		"schema_migrations", "moods", "journal_entries", "tags", "entry_tags",
		"notification_log", "media_attachments", "goals", "habits", "achievements",
	} {
		checkTableExists(t, db, table)
	}

	version, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	assert.Equal(t, CurrentSchemaVersion, m.Latest())

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, CurrentSchemaVersion, applied, "every edge, including the no-op, is recorded")
}

func TestMigrateAlreadyUpToDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestMigrator(t, db)

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Migrate(ctx))

	version, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestMigrateFromVersion3AddsPinnedDefault(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestMigrator(t, db)

	require.NoError(t, m.MigrateTo(ctx, 3))

	_, err := db.Exec(`INSERT INTO moods (label, level, emoji, color, created_at) VALUES ('Calm', 'GOOD', '', '', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`
        INSERT INTO journal_entries (title, content, created_at, updated_at, mood_id, mood_label, mood_level,
                                     tags_json, tags_flat, is_favorite, is_encrypted, prompt_title,
                                     secondary_emotions, factors)
        VALUES ('Old entry', 'written before pins existed', 1000, 2000, 1, 'Calm', 'GOOD',
                '["Work"]', 'Work', 1, 0, 'What went well?', '["relief"]', '["sleep"]')`)
	require.NoError(t, err)

	// the column does not exist yet
	_, err = db.Exec(`SELECT is_pinned FROM journal_entries`)
	require.Error(t, err)

	require.NoError(t, m.Migrate(ctx))

	var (
		title, content, moodLevel, tags, prompt, emotions string
		createdAt, updatedAt                              int64
		favorite, pinned, synced                          bool
		lat                                               sql.NullFloat64
	)
	err = db.QueryRow(`
        SELECT title, content, mood_level, tags_json, prompt_title, secondary_emotions,
               created_at, updated_at, is_favorite, is_pinned, is_synced, location_lat
        FROM journal_entries`).Scan(
		&title, &content, &moodLevel, &tags, &prompt, &emotions,
		&createdAt, &updatedAt, &favorite, &pinned, &synced, &lat,
	)
	require.NoError(t, err)

	assert.False(t, pinned)
	assert.False(t, synced)
	assert.False(t, lat.Valid)
	assert.Equal(t, "Old entry", title)
	assert.Equal(t, "written before pins existed", content)
	assert.Equal(t, "GOOD", moodLevel)
	assert.Equal(t, `["Work"]`, tags)
	assert.Equal(t, "What went well?", prompt)
	assert.Equal(t, `["relief"]`, emotions)
	assert.Equal(t, int64(1000), createdAt)
	assert.Equal(t, int64(2000), updatedAt)
	assert.True(t, favorite)
}

func TestChainWithGapIsRejected(t *testing.T) {
	db := newTestDB(t)

	chain := Chain()
	broken := append([]Migration{}, chain[:2]...)
	broken = append(broken, chain[3:]...)

	_, err := NewMigrator(db, broken, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMigrationGap))
}

func TestAddColumnWithoutDefaultIsRejected(t *testing.T) {
	db := newTestDB(t)

	chain := []Migration{
		{From: 0, To: 1, Name: "bad", Ops: []Operation{
			AddColumn{Table: "journal_entries", Column: Column{Name: "mood_note", Type: "TEXT", NotNull: true}},
		}},
	}

	_, err := NewMigrator(db, chain, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a default value is required")
}

func TestNewerDatabaseVersionFailsLoudly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestMigrator(t, db)

	require.NoError(t, m.Migrate(ctx))
	_, err := db.Exec(`INSERT INTO journal_entries (title, created_at, updated_at) VALUES ('keep me', 1, 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (99, 'from_the_future', 0)`)
	require.NoError(t, err)

	err = m.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMigrationGap))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM journal_entries`).Scan(&count))
	assert.Equal(t, 1, count, "no destructive fallback")
}

func TestMigrateBackwardsIsRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestMigrator(t, db)

	require.NoError(t, m.Migrate(ctx))

	err := m.MigrateTo(ctx, 2)
	assert.True(t, errors.Is(err, apperrors.ErrMigrationGap))

	err = m.MigrateTo(ctx, CurrentSchemaVersion+1)
	assert.True(t, errors.Is(err, apperrors.ErrMigrationGap))
}

func TestEncryptedDatabaseFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	key := "0123456789abcdef0123456789abcdef-page-key"

	db, err := Connect(DefaultConfig(path, key))
	require.NoError(t, err)
	require.NoError(t, newTestMigrator(t, db).Migrate(ctx))
	_, err = db.Exec(`INSERT INTO journal_entries (title, created_at, updated_at) VALUES ('plaintext marker', 1, 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(raw, []byte("SQLite format 3")))
	assert.False(t, bytes.Contains(raw, []byte("plaintext marker")))

	reopened, err := Connect(DefaultConfig(path, key))
	require.NoError(t, err)
	defer reopened.Close()

	var title string
	require.NoError(t, reopened.QueryRow(`SELECT title FROM journal_entries`).Scan(&title))
	assert.Equal(t, "plaintext marker", title)
}

func TestBuildDSN(t *testing.T) {
	plain := buildDSN(Config{Path: "/tmp/j.db"})
	assert.Equal(t, "file:/tmp/j.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate", plain)

	keyed := buildDSN(Config{Path: "/tmp/j.db", EncryptionKey: "a b&c"})
	assert.Contains(t, keyed, "_pragma_key=a+b%26c")
	assert.Contains(t, keyed, "_pragma_cipher_page_size=4096")
}
