// Package token verifies origin credentials against stored one-way hashes.
//
// The raw secret exists only at issuance time and in the caller's hands; the
// store holds a bcrypt hash. bcrypt is deliberately slow per call and its
// comparison does not leak which byte diverged. Callers are never told
// whether the token id was unknown, disabled, or the secret wrong: all three
// surface as ErrUnauthorized.
package token

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Token is one origin credential row. SecretHash is immutable after
// issuance; only Enabled, Limit and Window may change. Disabling is a soft
// delete so audit and rate-limit history survive.
type Token struct {
	ID         string
	SecretHash []byte
	Limit      int
	Window     time.Duration
	CreatedAt  time.Time
	Enabled    bool
}

// RateConfig is the admission budget attached to a verified token.
type RateConfig struct {
	Limit  int
	Window time.Duration
}

// Store looks up credential rows. Issuance and rotation are an external
// administrative concern, so the interface is read-only.
type Store interface {
	// Lookup returns the token row for id, disabled rows included.
	// Returns ErrNotFound for unknown ids.
	Lookup(ctx context.Context, id string) (Token, error)
}

// Verifier authenticates presented secrets.
type Verifier struct {
	store    Store
	defaults RateConfig
}

// NewVerifier creates a Verifier backed by store.
func NewVerifier(store Store, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store: store,
		defaults: RateConfig{
			Limit:  600,
			Window: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifierOption applies a configuration option to the Verifier.
type VerifierOption func(*Verifier)

// WithDefaultRate sets the budget used when a token row carries none.
func WithDefaultRate(cfg RateConfig) VerifierOption {
	return func(v *Verifier) {
		if cfg.Limit > 0 && cfg.Window > 0 {
			v.defaults = cfg
		}
	}
}

// Verify checks presentedSecret against the stored hash for tokenID and
// returns the token's rate configuration on success. Every failure mode
// collapses into ErrUnauthorized.
func (v *Verifier) Verify(ctx context.Context, tokenID, presentedSecret string) (RateConfig, error) {
	t, err := v.store.Lookup(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RateConfig{}, ErrUnauthorized
		}
		return RateConfig{}, err
	}
	if !t.Enabled {
		return RateConfig{}, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(t.SecretHash, []byte(presentedSecret)); err != nil {
		return RateConfig{}, ErrUnauthorized
	}

	cfg := RateConfig{Limit: t.Limit, Window: t.Window}
	if cfg.Limit <= 0 {
		cfg.Limit = v.defaults.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = v.defaults.Window
	}
	return cfg, nil
}

// HashSecret derives the storable one-way hash of a raw secret. Used at
// issuance time (dev seeding, tests); the raw secret is discarded after.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
