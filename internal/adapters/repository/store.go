// Package repository defines the durable event store interface and its
// in-memory and Postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/quillmetrics/quill/internal/domain/model"
)

// Filter narrows a Query. Zero values mean "no constraint"; the time range
// is half-open [Since, Until) to avoid double counting at boundaries.
type Filter struct {
	TokenID string
	Action  model.ActionKind
	Path    string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Store is the append-only event record plus its indexed read access.
//
// Appends are independent; no cross-event transaction exists. The aggregate
// methods are pushed down next to the data so the read path stays fast as
// the event table grows. A tokenID of "" scopes an aggregate to all tokens,
// and a zero since means all time.
type Store interface {
	// Append persists one event. The store assigns e.TS at persistence
	// time; failures wrap ErrStorage.
	Append(ctx context.Context, e model.Event) error

	// Query returns events matching f ordered by timestamp ascending.
	Query(ctx context.Context, f Filter) ([]model.Event, error)

	TotalCount(ctx context.Context, tokenID string) (int64, error)
	UniqueVisitors(ctx context.Context, tokenID string, since time.Time) (int64, error)
	// TopResources orders by count descending, ties broken by path ascending.
	TopResources(ctx context.Context, tokenID string, limit int) ([]model.ResourceCount, error)
	CountSince(ctx context.Context, tokenID string, since time.Time) (int64, error)
}
