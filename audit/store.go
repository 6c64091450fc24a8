// CLAUDE:SUMMARY SQLite audit log of remediation runs: run headers, fix records and provider prompt/response calls.
// Package audit persists what a run attempted, so every accepted or
// rejected fix can be inspected after the fact.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/a11yfix/dbopen"
	"github.com/hazyhaar/a11yfix/violation"
)

// Store is the audit database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the audit database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Run statuses.
const (
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Run is the header row of one remediation.
type Run struct {
	ID         string `json:"id"`
	PageURL    string `json:"page_url,omitempty"`
	Status     string `json:"status"`
	Violations int    `json:"violations"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, id, pageURL string, violations int) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO runs (id, page_url, status, violations, started_at)
		VALUES (?,?,?,?,?)`,
		id, pageURL, StatusRunning, violations, time.Now().UnixMilli())
	return err
}

// FinishRun stores the records of a run and closes it with status, in one
// transaction. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, id, status string, records []violation.FixRecord, runErr error) error {
	accepted, rejected := 0, 0
	for _, r := range records {
		if r.Accepted {
			accepted++
		} else {
			rejected++
		}
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fix_records (run_id, seq, violation_id, selector, strategy, accepted, reason)
			VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, id, i, r.ViolationID, r.Selector, string(r.Strategy), boolInt(r.Accepted), r.Reason); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, accepted = ?, rejected = ?, error = ?, finished_at = ?
			WHERE id = ?`,
			status, accepted, rejected, msg, time.Now().UnixMilli(), id)
		return err
	})
}

// GetRun returns a run by id, or nil if absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	var finished sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, page_url, status, violations, accepted, rejected, error, started_at, finished_at
		FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &r.PageURL, &r.Status, &r.Violations, &r.Accepted, &r.Rejected, &r.Error, &r.StartedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return r, nil
}

// ListRecords returns the records of a run in the order they were produced.
func (s *Store) ListRecords(ctx context.Context, runID string) ([]violation.FixRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT violation_id, selector, strategy, accepted, reason
		FROM fix_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []violation.FixRecord
	for rows.Next() {
		var r violation.FixRecord
		var strategy string
		var accepted int
		if err := rows.Scan(&r.ViolationID, &r.Selector, &strategy, &accepted, &r.Reason); err != nil {
			return nil, err
		}
		r.Strategy = violation.Strategy(strategy)
		r.Accepted = accepted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
