package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quillmetrics/quill/internal/domain/token"
)

// PostgresTokenStore implements token.Store against the origin_tokens table.
type PostgresTokenStore struct {
	store *PostgresStore
}

// NewPostgresTokenStore reuses an existing event store pool for token reads.
func NewPostgresTokenStore(store *PostgresStore) *PostgresTokenStore {
	return &PostgresTokenStore{store: store}
}

// Lookup implements token.Store.
func (p *PostgresTokenStore) Lookup(ctx context.Context, id string) (token.Token, error) {
	var (
		t       token.Token
		windowS int
	)
	err := p.store.pool.QueryRow(ctx, `
		SELECT id, secret_hash, rate_limit, rate_window_s, created_at, enabled
		FROM origin_tokens
		WHERE id = $1
	`, id).Scan(&t.ID, &t.SecretHash, &t.Limit, &windowS, &t.CreatedAt, &t.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.Token{}, token.ErrNotFound
		}
		return token.Token{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	t.Window = time.Duration(windowS) * time.Second
	return t, nil
}
