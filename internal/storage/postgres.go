package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS everwatch_snapshot (
    id       SMALLINT    PRIMARY KEY CHECK (id = 1),
    payload  JSONB       NOT NULL,
    saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores the snapshot as a JSONB document in a single-row table.
type Postgres struct {
	db *pgxpool.Pool
}

// OpenPostgres connects to connStr and applies the schema.
func OpenPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	if connStr == "" {
		return nil, errors.New("postgres url is required")
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Load reads and decodes the stored document.
func (p *Postgres) Load(ctx context.Context) LoadResult {
	var payload string
	err := p.db.QueryRow(ctx, `SELECT payload::text FROM everwatch_snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return empty()
	}
	if err != nil {
		return unavailable(fmt.Errorf("reading snapshot: %w", err))
	}
	return Decode([]byte(payload))
}

// Save upserts the single snapshot row.
func (p *Postgres) Save(ctx context.Context, eps []endpoint.Endpoint) error {
	data, err := Encode(eps)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO everwatch_snapshot (id, payload, saved_at)
		VALUES (1, $1::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
