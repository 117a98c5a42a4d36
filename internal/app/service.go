// Package app wires the ingestion pipeline: credential verification, rate
// admission, anonymization and persistence, plus the aggregate read path.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillmetrics/quill/internal/adapters/repository"
	"github.com/quillmetrics/quill/internal/domain/model"
	"github.com/quillmetrics/quill/internal/domain/ratelimit"
	"github.com/quillmetrics/quill/internal/domain/token"
	"github.com/quillmetrics/quill/pkg/logger"
	"github.com/quillmetrics/quill/pkg/metrics"
)

// defaultIngestTimeout bounds the credential lookup and the append of one
// ingestion call.
const defaultIngestTimeout = 2 * time.Second

// Verifier authenticates an origin token and returns its rate budget.
type Verifier interface {
	Verify(ctx context.Context, tokenID, presentedSecret string) (token.RateConfig, error)
}

// Pseudonymizer maps raw visitor identifiers to stable pseudonyms.
type Pseudonymizer interface {
	Pseudonymize(rawIdentifier string) string
}

// IngestRequest carries one submitted event through the gates. RawIdentifier
// is dropped after anonymization and must never be stored or logged.
type IngestRequest struct {
	TokenID       string
	Secret        string
	Action        string
	Path          string
	RawIdentifier string
}

// Service orchestrates ingestion and answers aggregate queries.
type Service struct {
	verifier   Verifier
	admitter   ratelimit.Admitter
	anonymizer Pseudonymizer
	events     repository.Store

	ingestTimeout time.Duration
	logger        logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIngestTimeout bounds the store sub-calls of one ingestion call.
func WithIngestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ingestTimeout = d
		}
	}
}

// New constructs the Service around its four collaborators.
func New(verifier Verifier, admitter ratelimit.Admitter, anonymizer Pseudonymizer, events repository.Store, opts ...Option) *Service {
	s := &Service{
		verifier:      verifier,
		admitter:      admitter,
		anonymizer:    anonymizer,
		events:        events,
		ingestTimeout: defaultIngestTimeout,
		logger:        logger.Named("app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs the gates in order: validate, verify, admit, pseudonymize,
// append. Every gate is hard; nothing before the append has a side effect
// that would need undoing (budget consumption on a rejected attempt is the
// documented rate-limit contract), so there is no rollback path.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) error {
	start := time.Now()
	defer func() {
		metrics.RecordIngestLatency(time.Since(start).Seconds())
	}()

	action, err := model.ParseAction(req.Action)
	if err != nil {
		metrics.RecordEventRejected("invalid_input")
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.Path) == "" || req.RawIdentifier == "" {
		metrics.RecordEventRejected("invalid_input")
		return ErrInvalidInput
	}

	vctx, cancel := context.WithTimeout(ctx, s.ingestTimeout)
	defer cancel()

	cfg, err := s.verifier.Verify(vctx, req.TokenID, req.Secret)
	if err != nil {
		// Unknown token, disabled token and bad secret are already collapsed
		// into one sentinel by the verifier; only log the reject class.
		metrics.RecordEventRejected("unauthorized")
		s.logger.Debug(ctx, "ingest rejected", logger.String("token", req.TokenID), logger.Error(err))
		return err
	}

	if !s.admitter.Allow(req.TokenID, cfg.Limit, cfg.Window) {
		metrics.RecordEventRejected("rate_limited")
		metrics.RecordRateLimited()
		return ErrRateLimited
	}

	e := model.Event{
		ID:        uuid.New().String(),
		TokenID:   req.TokenID,
		Action:    action,
		Path:      req.Path,
		VisitorID: s.anonymizer.Pseudonymize(req.RawIdentifier),
	}

	actx, cancel := context.WithTimeout(ctx, s.ingestTimeout)
	defer cancel()

	if err := s.events.Append(actx, e); err != nil {
		// Surfaced to the caller, who may retry; never retried here.
		metrics.RecordEventRejected("storage")
		s.logger.Error(ctx, "append failed", logger.String("token", req.TokenID), logger.Error(err))
		return err
	}

	metrics.RecordEventAccepted()
	return nil
}

// TotalCount returns the number of stored events, optionally token-scoped.
func (s *Service) TotalCount(ctx context.Context, tokenID string) (int64, error) {
	return s.events.TotalCount(ctx, tokenID)
}

// UniqueVisitors counts distinct pseudonymous identifiers.
func (s *Service) UniqueVisitors(ctx context.Context, tokenID string, since time.Time) (int64, error) {
	return s.events.UniqueVisitors(ctx, tokenID, since)
}

// TopResources returns up to limit resources by event count, ties broken by
// path ascending.
func (s *Service) TopResources(ctx context.Context, tokenID string, limit int) ([]model.ResourceCount, error) {
	return s.events.TopResources(ctx, tokenID, limit)
}

// ActivityInWindow counts events at or after since.
func (s *Service) ActivityInWindow(ctx context.Context, tokenID string, since time.Time) (int64, error) {
	return s.events.CountSince(ctx, tokenID, since)
}

// Stats computes the dashboard bundle. The four aggregates share no mutable
// state, so they run concurrently; the first failure cancels the rest and
// fails the batch.
func (s *Service) Stats(ctx context.Context, tokenID string, since time.Time, limit int) (model.Stats, error) {
	var out model.Stats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.events.TotalCount(gctx, tokenID)
		out.TotalCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.events.UniqueVisitors(gctx, tokenID, since)
		out.UniqueVisitors = n
		return err
	})
	g.Go(func() error {
		n, err := s.events.CountSince(gctx, tokenID, since)
		out.RecentCount = n
		return err
	})
	g.Go(func() error {
		top, err := s.events.TopResources(gctx, tokenID, limit)
		out.TopResources = top
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}
	if out.TopResources == nil {
		out.TopResources = []model.ResourceCount{}
	}
	return out, nil
}
