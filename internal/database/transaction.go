package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultTxTimeout = 30 * time.Second

// TransactionManager runs write transactions one at a time. SQLite has a
// single writer; callers queue here instead of failing with SQLITE_BUSY.
type TransactionManager struct {
	db      *sql.DB
	timeout time.Duration
	mu      sync.Mutex
}

type TxOption func(*TransactionManager)

// WithTxTimeout bounds every transaction, including the wait for the lock's
// holder to finish
func WithTxTimeout(d time.Duration) TxOption {
	return func(tm *TransactionManager) {
		if d > 0 {
			tm.timeout = d
		}
	}
}

func NewTransactionManager(db *sql.DB, opts ...TxOption) *TransactionManager {
	tm := &TransactionManager{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Execute runs fn inside a transaction. The onCommit callbacks run after a
// successful commit and before the next writer starts, so they observe
// commits in order. Nothing runs them when fn or the commit fails.
func (tm *TransactionManager) Execute(ctx context.Context, fn func(*sql.Tx) error, onCommit ...func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, tm.timeout)
	defer cancel()

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	done := false
	defer func() {
		if !done {
			// rollback after a panic in fn; the panic keeps unwinding
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		done = true
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	done = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, cb := range onCommit {
		cb()
	}
	return nil
}
