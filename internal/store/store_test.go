package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/secure-journal/internal/database"
	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/ratelimit"
	"github.com/amirk1998/secure-journal/internal/security"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx      context.Context
	db       *sql.DB
	backend  *Backend
	cipher   *security.Cipher
	entries  *EntryStore
	moods    *MoodStore
	tags     *TagStore
	media    *MediaVault
	trackers *TrackerStore
	clock    *fakeClock
}

func testKey() []byte {
	key := make([]byte, security.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.Connect(database.DefaultConfig(filepath.Join(dir, "journal.db"), ""))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := database.NewMigrator(db, database.Chain(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Migrate(ctx))

	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	backend := NewBackend(db, Options{
		Limiter: ratelimit.NewRateLimiter(1000, 100),
		Logger:  zerolog.Nop(),
		Clock:   clock.Now,
	})

	cipher := security.NewCipher(security.NewStaticKeystore(testKey()))
	vault, err := NewMediaVault(backend, cipher, filepath.Join(dir, "media"))
	require.NoError(t, err)

	env := &testEnv{
		ctx:      ctx,
		db:       db,
		backend:  backend,
		cipher:   cipher,
		entries:  NewEntryStore(backend, cipher, vault),
		moods:    NewMoodStore(backend),
		tags:     NewTagStore(backend),
		media:    vault,
		trackers: NewTrackerStore(backend),
		clock:    clock,
	}

	_, err = env.moods.SeedDefaults(ctx)
	require.NoError(t, err)
	return env
}

// moodID looks up a seeded mood by label
func (env *testEnv) moodID(t *testing.T, label string) int64 {
	t.Helper()
	moods, err := env.moods.List(env.ctx)
	require.NoError(t, err)
	for _, m := range moods {
		if m.Label == label {
			return m.ID
		}
	}
	t.Fatalf("mood %q not seeded", label)
	return 0
}

func (env *testEnv) insert(t *testing.T, e models.Entry) models.Entry {
	t.Helper()
	_, err := env.entries.Insert(env.ctx, &e)
	require.NoError(t, err)
	return e
}

func next[T any](t *testing.T, s *Stream[T]) Result[T] {
	t.Helper()
	select {
	case r, ok := <-s.C:
		require.True(t, ok, "stream closed unexpectedly")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream emission")
	}
	return Result[T]{}
}
