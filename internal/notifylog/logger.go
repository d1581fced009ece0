package notifylog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/pkg/errors"
)

const queueSize = 1000

// ErrClosed is returned when an event is logged after Close
var ErrClosed = fmt.Errorf("notification log is closed")

type Options struct {
	Async  bool
	Bus    *events.Bus
	Logger zerolog.Logger
	Clock  func() time.Time
}

// Logger is the append-only reminder delivery log
type Logger struct {
	db        *sql.DB
	log       zerolog.Logger
	bus       *events.Bus
	clock     func() time.Time
	asyncMode bool
	queue     chan *models.Notification
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	// mu guards closed and sends on queue
	mu     sync.Mutex
	closed bool
}

// NewLogger creates a new notification logger. The notification_log table
// is created by the schema migrations.
func NewLogger(db *sql.DB, opts Options) *Logger {
	ctx, cancel := context.WithCancel(context.Background())

	l := &Logger{
		db:        db,
		log:       opts.Logger,
		bus:       opts.Bus,
		clock:     opts.Clock,
		asyncMode: opts.Async,
		ctx:       ctx,
		cancel:    cancel,
	}
	if l.clock == nil {
		l.clock = time.Now
	}

	if l.asyncMode {
		l.queue = make(chan *models.Notification, queueSize)
		l.startAsyncWriter()
	}

	return l
}

// LogEvent records one delivery attempt
func (l *Logger) LogEvent(ctx context.Context, title, message string, status models.NotificationStatus) error {
	status = models.NotificationStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		return fmt.Errorf("%w: unknown notification status %q", errors.ErrInvalidInput, status)
	}

	n := &models.Notification{
		Title:     title,
		Message:   message,
		Status:    status,
		CreatedAt: l.clock().UTC().Truncate(time.Millisecond),
	}

	if l.asyncMode {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return ErrClosed
		}
		select {
		case l.queue <- n:
			return nil
		default:
			return fmt.Errorf("notification log queue is full")
		}
	}

	return l.write(ctx, n)
}

func (l *Logger) write(ctx context.Context, n *models.Notification) error {
	result, err := l.db.ExecContext(ctx,
		`INSERT INTO notification_log (title, message, status, created_at) VALUES (?, ?, ?, ?)`,
		n.Title, n.Message, string(n.Status), n.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write notification log: %w", err)
	}
	n.ID, _ = result.LastInsertId()

	l.log.Info().
		Int64("id", n.ID).
		Str("status", string(n.Status)).
		Str("title", n.Title).
		Msg("notification logged")

	if l.bus != nil {
		l.bus.Publish(events.TopicNotifications)
	}
	return nil
}

func (l *Logger) startAsyncWriter() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case n := <-l.queue:
				if err := l.write(context.Background(), n); err != nil {
					l.log.Error().Err(err).Msg("failed to write notification event")
				}
			case <-l.ctx.Done():
				// drain what was accepted before Close
				for len(l.queue) > 0 {
					n := <-l.queue
					if err := l.write(context.Background(), n); err != nil {
						l.log.Error().Err(err).Msg("failed to write notification event")
					}
				}
				return
			}
		}
	}()
}

// Query returns log records newest first
func (l *Logger) Query(ctx context.Context, filters QueryFilters) ([]models.Notification, error) {
	query := `SELECT id, title, message, status, created_at FROM notification_log WHERE 1=1`
	args := []any{}

	if filters.StartTime != nil {
		query += " AND created_at >= ?"
		args = append(args, filters.StartTime.UnixMilli())
	}

	if filters.EndTime != nil {
		query += " AND created_at <= ?"
		args = append(args, filters.EndTime.UnixMilli())
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	if filters.Limit <= 0 {
		filters.Limit = 100
	}
	args = append(args, filters.Limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification log: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			status    string
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %w", err)
		}
		n.Status = models.NotificationStatus(status)
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, n)
	}

	return out, rows.Err()
}

// Prune deletes records older than the retention window. It is a maintenance
// task and never runs on the write path.
func (l *Logger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.clock().Add(-retention).UnixMilli()

	result, err := l.db.ExecContext(ctx, `DELETE FROM notification_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notification log: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.log.Info().Int64("removed", n).Dur("retention", retention).Msg("notification log pruned")
		if l.bus != nil {
			l.bus.Publish(events.TopicNotifications)
		}
	}
	return n, nil
}

// Close flushes queued events and stops the async writer
func (l *Logger) Close() error {
	if !l.asyncMode {
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	return nil
}
