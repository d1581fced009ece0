package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
	"github.com/rs/zerolog"

	"github.com/amirk1998/secure-journal/internal/database"
	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/ratelimit"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

type Options struct {
	Bus     *events.Bus
	Limiter *ratelimit.RateLimiter
	Logger  zerolog.Logger
	Clock   func() time.Time
}

// Backend is the connection shared by every store. Writes are serialized by
// the transaction manager and publish their topics after commit.
type Backend struct {
	db      *sql.DB
	tx      *database.TransactionManager
	bus     *events.Bus
	limiter *ratelimit.RateLimiter
	log     zerolog.Logger
	clock   func() time.Time

	streamSeq atomic.Uint64
}

func NewBackend(db *sql.DB, opts Options) *Backend {
	b := &Backend{
		db:      db,
		tx:      database.NewTransactionManager(db),
		bus:     opts.Bus,
		limiter: opts.Limiter,
		log:     opts.Logger,
		clock:   opts.Clock,
	}
	if b.bus == nil {
		b.bus = events.NewBus()
	}
	if b.limiter == nil {
		b.limiter = ratelimit.NewRateLimiter(20, 5)
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b *Backend) Bus() *events.Bus { return b.bus }

// now returns the store clock normalized to what the columns can hold
func (b *Backend) now() time.Time {
	return normalizeTime(b.clock())
}

// write runs fn in a transaction and, once committed, notifies subscribers of topics
func (b *Backend) write(ctx context.Context, fn func(*sql.Tx) error, topics ...events.Topic) error {
	publish := func() { b.bus.Publish(topics...) }
	if err := b.tx.Execute(ctx, fn, publish); err != nil {
		return mapError(err)
	}
	return nil
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// mapError translates driver constraint failures into the store taxonomy
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", apperrors.ErrConstraintViolation, err)
	}
	return err
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(raw string) []string {
	items := []string{}
	if raw == "" {
		return items
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{}
	}
	return items
}

// cleanLabels trims, drops empties and de-duplicates while keeping order
func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func flattenTags(tags []string) string {
	return strings.Join(tags, ",")
}

// escapeLike escapes LIKE wildcards so user text matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
