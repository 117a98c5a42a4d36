package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillmetrics/quill/internal/domain/model"
	"github.com/quillmetrics/quill/pkg/metrics"
)

// schemaSQL is embedded so the service can self-bootstrap its schema.
//
//go:embed schema.sql
var schemaSQL string

const connectTimeout = 10 * time.Second

// PostgresStore implements Store on a pgx connection pool. Concurrent
// appends rely on the database's own write synchronization; no in-process
// locking is added.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if the database
// is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Ping validates connectivity; used by the health endpoint.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Append implements Store. The timestamp is assigned by the database at
// persistence time, so ts order reflects persistence order.
func (p *PostgresStore) Append(ctx context.Context, e model.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordAppendLatency(time.Since(start).Seconds())
	}()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO events(id, token_id, action, path, visitor_id, ts)
		VALUES ($1, $2, $3, $4, $5, now())
	`, e.ID, e.TokenID, string(e.Action), e.Path, e.VisitorID)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Query implements Store.
func (p *PostgresStore) Query(ctx context.Context, f Filter) ([]model.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RecordQueryLatency(time.Since(start).Seconds())
	}()

	q := `SELECT id, token_id, action, path, visitor_id, ts FROM events WHERE true`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(clause, len(args))
	}

	if f.TokenID != "" {
		add(" AND token_id = $%d", f.TokenID)
	}
	if f.Action != "" {
		add(" AND action = $%d", string(f.Action))
	}
	if f.Path != "" {
		add(" AND path = $%d", f.Path)
	}
	if !f.Since.IsZero() {
		add(" AND ts >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add(" AND ts < $%d", f.Until)
	}
	q += " ORDER BY ts ASC"
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var action string
		if err := rows.Scan(&e.ID, &e.TokenID, &action, &e.Path, &e.VisitorID, &e.TS); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		e.Action = model.ActionKind(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return out, nil
}

// scopedCount runs a COUNT query with an optional token scope and an
// optional half-open lower time bound.
func (p *PostgresStore) scopedCount(ctx context.Context, sel, tokenID string, since time.Time) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordQueryLatency(time.Since(start).Seconds())
	}()

	q := sel + ` FROM events WHERE true`
	var args []any
	if tokenID != "" {
		args = append(args, tokenID)
		q += fmt.Sprintf(" AND token_id = $%d", len(args))
	}
	if !since.IsZero() {
		args = append(args, since)
		q += fmt.Sprintf(" AND ts >= $%d", len(args))
	}

	var n int64
	if err := p.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		metrics.RecordStoreError()
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return n, nil
}

// TotalCount implements Store.
func (p *PostgresStore) TotalCount(ctx context.Context, tokenID string) (int64, error) {
	return p.scopedCount(ctx, `SELECT COUNT(*)`, tokenID, time.Time{})
}

// UniqueVisitors implements Store.
func (p *PostgresStore) UniqueVisitors(ctx context.Context, tokenID string, since time.Time) (int64, error) {
	return p.scopedCount(ctx, `SELECT COUNT(DISTINCT visitor_id)`, tokenID, since)
}

// CountSince implements Store.
func (p *PostgresStore) CountSince(ctx context.Context, tokenID string, since time.Time) (int64, error) {
	return p.scopedCount(ctx, `SELECT COUNT(*)`, tokenID, since)
}

// TopResources implements Store.
func (p *PostgresStore) TopResources(ctx context.Context, tokenID string, limit int) ([]model.ResourceCount, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	defer func() {
		metrics.RecordQueryLatency(time.Since(start).Seconds())
	}()

	q := `
		SELECT path, COUNT(*) AS n
		FROM events
		WHERE ($1 = '' OR token_id = $1)
		GROUP BY path
		ORDER BY n DESC, path ASC
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, q, tokenID, limit)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []model.ResourceCount
	for rows.Next() {
		var rc model.ResourceCount
		if err := rows.Scan(&rc.Path, &rc.Count); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return out, nil
}
