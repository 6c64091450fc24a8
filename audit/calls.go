package audit

import (
	"context"
	"time"

	"github.com/hazyhaar/a11yfix/dbopen"
)

// Call is one logged provider exchange.
type Call struct {
	RunID       string        `json:"run_id"`
	Kind        string        `json:"kind"`
	Instruction string        `json:"instruction"`
	Payload     string        `json:"payload"`
	Response    string        `json:"response,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   int64         `json:"created_at"`
}

// InsertCall logs one provider exchange.
func (s *Store) InsertCall(ctx context.Context, c *Call) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO provider_calls (run_id, kind, instruction, payload, response, error, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		c.RunID, c.Kind, c.Instruction, c.Payload, c.Response, c.Error, c.Duration.Milliseconds(), c.CreatedAt)
	return err
}

// ListCalls returns the provider calls of a run, oldest first.
func (s *Store) ListCalls(ctx context.Context, runID string) ([]Call, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, kind, instruction, payload, response, error, duration_ms, created_at
		FROM provider_calls WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		var ms int64
		if err := rows.Scan(&c.RunID, &c.Kind, &c.Instruction, &c.Payload, &c.Response, &c.Error, &ms, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}
