package describe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/a11yfix/dbopen"
)

// Schema is the DDL for the description cache table.
const Schema = `
CREATE TABLE IF NOT EXISTS image_descriptions (
    ref         TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);
`

// SQLite is a Cache backed by an SQLite table. It can be shared by
// concurrent runs: the primary key enforces first-write-wins.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (or creates) the cache database at path. opts come
// after the defaults and may override them.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &SQLite{DB: db}, nil
}

// NewSQLite wraps an open database, applying the schema.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("describe: schema: %w", err)
	}
	return &SQLite{DB: db}, nil
}

func (s *SQLite) Lookup(ctx context.Context, ref string) (string, bool, error) {
	var d string
	err := s.DB.QueryRowContext(ctx,
		`SELECT description FROM image_descriptions WHERE ref = ?`, ref).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("describe: lookup: %w", err)
	}
	return d, true, nil
}

func (s *SQLite) Store(ctx context.Context, ref, description string) error {
	if ref == "" || strings.TrimSpace(description) == "" {
		return ErrEmpty
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT OR IGNORE INTO image_descriptions (ref, description, created_at) VALUES (?, ?, ?)`,
		ref, description, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("describe: store: %w", err)
	}
	return nil
}

// Import stores every entry, keeping existing descriptions. It returns the
// number of new rows.
func (s *SQLite) Import(ctx context.Context, entries map[string]string) (int, error) {
	added := 0
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		added = 0
		now := time.Now().UnixMilli()
		for ref, d := range entries {
			if ref == "" || strings.TrimSpace(d) == "" {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO image_descriptions (ref, description, created_at) VALUES (?, ?, ?)`,
				ref, d, now)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("describe: import: %w", err)
	}
	return added, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.DB.Close()
}
