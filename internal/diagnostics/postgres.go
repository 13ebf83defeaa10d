package diagnostics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of database.DB the sink needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS scrape_diagnostics (
	name        TEXT PRIMARY KEY,
	capture_id  UUID NOT NULL,
	url         TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	body        TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
)`

const upsertSQL = `
INSERT INTO scrape_diagnostics (name, capture_id, url, status_code, body, captured_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
	capture_id  = EXCLUDED.capture_id,
	url         = EXCLUDED.url,
	status_code = EXCLUDED.status_code,
	body        = EXCLUDED.body,
	captured_at = EXCLUDED.captured_at`

// PostgresSink keeps the latest capture in a single row of
// scrape_diagnostics.
type PostgresSink struct {
	db   Execer
	name string
}

func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db, name: DefaultName}
}

// EnsureSchema creates the diagnostics table if it does not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create scrape_diagnostics: %w", err)
	}
	return nil
}

func (p *PostgresSink) Capture(ctx context.Context, report Report) error {
	_, err := p.db.Exec(ctx, upsertSQL,
		p.name,
		report.ID,
		report.URL,
		report.StatusCode,
		report.Body,
		report.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store diagnostics: %w", err)
	}
	return nil
}
