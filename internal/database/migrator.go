package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirk1998/secure-journal/pkg/errors"
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string // may carry inline constraints, e.g. "INTEGER PRIMARY KEY AUTOINCREMENT"
	NotNull    bool
	Default    string // SQL literal; "NULL" is an explicit default
	References string // e.g. "moods(id) ON DELETE SET NULL"
}

func (c Column) definition() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.References != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(c.References)
	}
	return b.String()
}

// Operation is a single explicit schema change.
type Operation interface {
	Statements() ([]string, error)
	Describe() string
}

type CreateTable struct {
	Name        string
	Columns     []Column
	Constraints []string
}

func (op CreateTable) Statements() ([]string, error) {
	if op.Name == "" || len(op.Columns) == 0 {
		return nil, fmt.Errorf("create table: name and columns are required")
	}
	defs := make([]string, 0, len(op.Columns)+len(op.Constraints))
	for _, c := range op.Columns {
		defs = append(defs, c.definition())
	}
	defs = append(defs, op.Constraints...)
	return []string{fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", op.Name, strings.Join(defs, ",\n    "))}, nil
}

func (op CreateTable) Describe() string { return "create table " + op.Name }

// AddColumn adds a column to an existing table. Existing rows must stay valid
// without a backfill, so a default is mandatory.
type AddColumn struct {
	Table  string
	Column Column
}

func (op AddColumn) Statements() ([]string, error) {
	if op.Column.Default == "" {
		return nil, fmt.Errorf("add column %s.%s: a default value is required", op.Table, op.Column.Name)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", op.Table, op.Column.definition())}, nil
}

func (op AddColumn) Describe() string { return "add column " + op.Table + "." + op.Column.Name }

type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (op CreateIndex) Statements() ([]string, error) {
	if len(op.Columns) == 0 {
		return nil, fmt.Errorf("create index %s: columns are required", op.Name)
	}
	unique := ""
	if op.Unique {
		unique = "UNIQUE "
	}
	return []string{fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, op.Name, op.Table, strings.Join(op.Columns, ", "))}, nil
}

func (op CreateIndex) Describe() string { return "create index " + op.Name }

// NoOp keeps the version chain unbroken when a release leaves storage unchanged.
type NoOp struct {
	Reason string
}

func (op NoOp) Statements() ([]string, error) { return nil, nil }

func (op NoOp) Describe() string { return "no-op: " + op.Reason }

// Migration moves the schema from version From to version To = From+1.
type Migration struct {
	From int
	To   int
	Name string
	Ops  []Operation
}

const historySchema = `
    CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        name TEXT NOT NULL,
        applied_at INTEGER NOT NULL
    )`

type Migrator struct {
	db    *sql.DB
	chain []Migration
	log   zerolog.Logger
	now   func() time.Time
}

// NewMigrator validates the chain and returns a migrator for db.
// A chain that skips or repeats a version is a fatal configuration error.
func NewMigrator(db *sql.DB, chain []Migration, log zerolog.Logger) (*Migrator, error) {
	for i, mig := range chain {
		if mig.From != i || mig.To != i+1 {
			return nil, fmt.Errorf("%w: migration %q goes %d -> %d, expected %d -> %d",
				errors.ErrMigrationGap, mig.Name, mig.From, mig.To, i, i+1)
		}
		if mig.Name == "" {
			return nil, fmt.Errorf("migration %d -> %d has no name", mig.From, mig.To)
		}
		for _, op := range mig.Ops {
			if _, err := op.Statements(); err != nil {
				return nil, fmt.Errorf("migration %q: %w", mig.Name, err)
			}
		}
	}

	return &Migrator{db: db, chain: chain, log: log, now: time.Now}, nil
}

// Latest returns the schema version this build targets
func (m *Migrator) Latest() int {
	return len(m.chain)
}

// Current returns the version recorded in the database, 0 for a new file
func (m *Migrator) Current(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, historySchema); err != nil {
		return 0, fmt.Errorf("failed to create migration history table: %w", err)
	}

	var version int
	err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Migrate brings the database to the latest version
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.MigrateTo(ctx, m.Latest())
}

// MigrateTo applies every step between the stored version and target.
// Migrations only move forward; an unknown stored version fails loudly.
func (m *Migrator) MigrateTo(ctx context.Context, target int) error {
	if target < 0 || target > m.Latest() {
		return fmt.Errorf("%w: target version %d is outside 0..%d", errors.ErrMigrationGap, target, m.Latest())
	}

	current, err := m.Current(ctx)
	if err != nil {
		return err
	}

	if current > m.Latest() {
		return fmt.Errorf("%w: database has schema version %d, which is newer than the supported version %d",
			errors.ErrMigrationGap, current, m.Latest())
	}

	if current > target {
		return fmt.Errorf("%w: database has schema version %d, cannot move back to %d",
			errors.ErrMigrationGap, current, target)
	}

	if current == target {
		m.log.Debug().Int("version", current).Msg("schema up to date")
		return nil
	}

	for _, mig := range m.chain[current:target] {
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %q: %w", mig.Name, err)
	}
	defer tx.Rollback()

	for _, op := range mig.Ops {
		stmts, err := op.Statements()
		if err != nil {
			return fmt.Errorf("migration %q: %w", mig.Name, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %q (%s) failed: %w", mig.Name, op.Describe(), err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		mig.To, mig.Name, m.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration %q: %w", mig.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %q: %w", mig.Name, err)
	}

	m.log.Info().Int("from", mig.From).Int("to", mig.To).Str("migration", mig.Name).Msg("schema migrated")
	return nil
}
