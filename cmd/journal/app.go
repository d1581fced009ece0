package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/amirk1998/secure-journal/internal/config"
	"github.com/amirk1998/secure-journal/internal/database"
	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/export"
	"github.com/amirk1998/secure-journal/internal/logger"
	"github.com/amirk1998/secure-journal/internal/notifylog"
	"github.com/amirk1998/secure-journal/internal/ratelimit"
	"github.com/amirk1998/secure-journal/internal/security"
	"github.com/amirk1998/secure-journal/internal/service"
	"github.com/amirk1998/secure-journal/internal/store"
)

type application struct {
	config   *config.Config
	log      zerolog.Logger
	db       *sql.DB
	migrator *database.Migrator
	limiter  *ratelimit.RateLimiter
	vault    *store.MediaVault
	entries  *store.EntryStore
	moods    *store.MoodStore
	tags     *store.TagStore
	trackers *store.TrackerStore
	journal  *service.JournalService
	notify   *notifylog.Logger
	exporter *export.Engine
}

// openApp wires every component against the configured database. The schema
// is migrated and the default catalogs seeded before it returns.
func openApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// stdout carries command output
	log := logger.NewWithWriter(os.Stderr, "journal").Level(logger.ParseLevel(cfg.LogLevel))

	db, err := database.Connect(database.DefaultConfig(cfg.DBPath, cfg.DBEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	migrator, err := database.NewMigrator(db, database.Chain(), log)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	var keystore security.Keystore
	switch cfg.KeySource {
	case config.KeySourceEnv:
		keystore = security.NewEnvKeystore(config.DataKeyEnv)
	default:
		keystore = security.NewFileKeystore(cfg.KeyFile, cfg.KeyPassphrase)
	}
	cipher := security.NewCipher(keystore)

	bus := events.NewBus()
	limiter := ratelimit.NewRateLimiter(cfg.StreamRefreshRPS, cfg.StreamRefreshBurst)
	backend := store.NewBackend(db, store.Options{Bus: bus, Limiter: limiter, Logger: log})

	vault, err := store.NewMediaVault(backend, cipher, cfg.MediaDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	exporter, err := export.NewEngine(cfg.ExportDir, export.Options{Media: vault, Logger: log})
	if err != nil {
		db.Close()
		return nil, err
	}

	app := &application{
		config:   cfg,
		log:      log,
		db:       db,
		migrator: migrator,
		limiter:  limiter,
		vault:    vault,
		entries:  store.NewEntryStore(backend, cipher, vault),
		moods:    store.NewMoodStore(backend),
		tags:     store.NewTagStore(backend),
		trackers: store.NewTrackerStore(backend),
		exporter: exporter,
	}
	app.notify = notifylog.NewLogger(db, notifylog.Options{Async: cfg.NotifyAsync, Bus: bus, Logger: log})
	app.journal = service.NewJournalService(app.entries, app.moods, app.tags, log,
		service.NewAchievementHooks(app.entries, app.trackers))

	if _, err := app.moods.SeedDefaults(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to seed moods: %w", err)
	}
	if _, err := app.tags.SeedDefaults(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to seed tags: %w", err)
	}

	return app, nil
}

func (app *application) close() {
	if app.notify != nil {
		if err := app.notify.Close(); err != nil {
			app.log.Error().Err(err).Msg("failed to flush notification log")
		}
	}
	if app.db != nil {
		app.db.Close()
	}
}

// withApp opens the application for the duration of one command
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application) error) error {
	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()
	return fn(ctx, app)
}
