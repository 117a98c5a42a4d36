package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quillmetrics/quill/internal/domain/model"
)

// MemoryStore is a mutex-guarded Store for dev mode and tests.
// Events are held in insertion order, which is also timestamp order because
// TS is assigned under the same lock as the append.
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.Event
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory event store with options.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock injects the time source used for persistence timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.TS = s.now().UTC()
	s.events = append(s.events, e)
	return nil
}

// matches reports whether e satisfies every set constraint of f.
func matches(e model.Event, f Filter) bool {
	switch {
	case f.TokenID != "" && e.TokenID != f.TokenID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Path != "" && e.Path != f.Path:
		return false
	case !f.Since.IsZero() && e.TS.Before(f.Since):
		return false
	case !f.Until.IsZero() && !e.TS.Before(f.Until):
		return false
	}
	return true
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, e := range s.events {
		if !matches(e, f) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// TotalCount implements Store.
func (s *MemoryStore) TotalCount(_ context.Context, tokenID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if tokenID == "" || e.TokenID == tokenID {
			n++
		}
	}
	return n, nil
}

// UniqueVisitors implements Store.
func (s *MemoryStore) UniqueVisitors(_ context.Context, tokenID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.events {
		if tokenID != "" && e.TokenID != tokenID {
			continue
		}
		if !since.IsZero() && e.TS.Before(since) {
			continue
		}
		seen[e.VisitorID] = struct{}{}
	}
	return int64(len(seen)), nil
}

// TopResources implements Store.
func (s *MemoryStore) TopResources(_ context.Context, tokenID string, limit int) ([]model.ResourceCount, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range s.events {
		if tokenID != "" && e.TokenID != tokenID {
			continue
		}
		counts[e.Path]++
	}

	out := make([]model.ResourceCount, 0, len(counts))
	for path, n := range counts {
		out = append(out, model.ResourceCount{Path: path, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSince implements Store.
func (s *MemoryStore) CountSince(_ context.Context, tokenID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if tokenID != "" && e.TokenID != tokenID {
			continue
		}
		if !since.IsZero() && e.TS.Before(since) {
			continue
		}
		n++
	}
	return n, nil
}
