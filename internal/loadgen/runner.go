package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/quillmetrics/quill/pkg/logger"
)

// Run executes one load run: health check, generate, submit, verify.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting quill load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("token", cfg.TokenID),
		logger.Int("events", cfg.NumEvents),
		logger.Int("workers", cfg.Workers),
		logger.Int("visitors", cfg.Visitors),
	)

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	events := generateEvents(cfg)
	stats.Generated = len(events)

	if err := submitEvents(ctx, cfg, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}
	stats.Duration = time.Since(stats.StartTime)

	log.Info(ctx, "submission finished",
		logger.Int("generated", stats.Generated),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("rejected", stats.Rejected),
		logger.Duration("took", stats.Duration),
	)

	agg, err := fetchStats(ctx, cfg)
	if err != nil {
		return fmt.Errorf("stats retrieval failed: %w", err)
	}

	log.Info(ctx, "aggregates after run",
		logger.Int64("totalCount", agg.TotalCount),
		logger.Int64("uniqueVisitors", agg.UniqueVisitors),
		logger.Int64("recentCount", agg.RecentCount),
		logger.Int("topResources", len(agg.TopResources)),
	)

	// The store may hold events from earlier runs, so only sanity-check
	// direction, not exact counts.
	if agg.TotalCount < int64(stats.Accepted) {
		return fmt.Errorf("total_count %d below accepted %d", agg.TotalCount, stats.Accepted)
	}
	if agg.UniqueVisitors > agg.TotalCount {
		return fmt.Errorf("unique_visitors %d exceeds total_count %d", agg.UniqueVisitors, agg.TotalCount)
	}

	log.Info(ctx, "load run passed")
	return nil
}
