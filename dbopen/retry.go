package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Attempts bounds how many times Exec and RunTx try a busy statement.
const Attempts = 3

// backoff is the wait before retry n (1-based).
func backoff(n int) time.Duration { return time.Duration(n) * 100 * time.Millisecond }

// IsBusy reports whether err is an SQLite BUSY/locked condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Exec runs a statement, retrying while SQLite reports the database busy.
// The description cache and the audit log share one file across concurrent
// runs, so writers can collide.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retry(ctx, "exec", func() error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// RunTx runs fn inside a transaction under the same policy as Exec. fn may
// be called more than once and must not keep state between calls.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retry(ctx, "tx", func() error { return inTx(ctx, db, fn) })
}

func retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for n := 1; n <= Attempts; n++ {
		if err = fn(); err == nil || !IsBusy(err) {
			return err
		}
		if n == Attempts {
			break
		}
		t := time.NewTimer(backoff(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: %s: %w", op, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("dbopen: %s: still busy after %d attempts: %w", op, Attempts, err)
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}
