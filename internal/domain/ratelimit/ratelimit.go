// Package ratelimit enforces per-token fixed-window request budgets.
//
// A fixed window trades boundary bursts (up to twice the limit across one
// boundary) for O(1) memory per token and no background compaction. Rejected
// attempts still consume budget so a retry storm cannot reset its own window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default limiter configuration constants.
const (
	defaultIdleTTL       = 15 * time.Minute
	defaultSweepInterval = 2 * time.Minute
)

// Admitter decides whether one request fits the token's current budget.
type Admitter interface {
	// Allow atomically counts the request against tokenID's active window
	// and reports whether it fits within limit. The attempt is counted even
	// when the answer is false.
	Allow(tokenID string, limit int, window time.Duration) bool
}

// rateWindow is the mutable per-token state. Guarded by Limiter.mu.
type rateWindow struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// Limiter implements Admitter with an in-memory window map.
// State is process-local and does not survive a restart.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	now           func() time.Time
	idleTTL       time.Duration
	sweepInterval time.Duration
}

// New creates a Limiter with configuration options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:       make(map[string]*rateWindow),
		now:           time.Now,
		idleTTL:       defaultIdleTTL,
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implements Admitter. The increment-and-compare runs under one lock
// acquisition, so two concurrent calls can never both pass the boundary.
func (l *Limiter) Allow(tokenID string, limit int, window time.Duration) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[tokenID]
	if !ok || now.Sub(w.start) >= window {
		l.windows[tokenID] = &rateWindow{start: now, count: 1, lastSeen: now}
		return limit >= 1
	}

	w.count++
	w.lastSeen = now
	return w.count <= limit
}

// Size returns the number of windows currently held.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep drops windows idle longer than the configured TTL.
func (l *Limiter) Sweep() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, id)
		}
	}
}

// StartJanitor sweeps idle windows periodically until ctx is canceled.
func (l *Limiter) StartJanitor(ctx context.Context) {
	if l.sweepInterval <= 0 {
		return
	}

	t := time.NewTicker(l.sweepInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}()
}
