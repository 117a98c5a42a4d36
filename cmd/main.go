package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quillmetrics/quill/internal/adapters/http/api"
	"github.com/quillmetrics/quill/internal/adapters/repository"
	"github.com/quillmetrics/quill/internal/app"
	"github.com/quillmetrics/quill/internal/config"
	"github.com/quillmetrics/quill/internal/domain/anonymize"
	"github.com/quillmetrics/quill/internal/domain/ratelimit"
	"github.com/quillmetrics/quill/internal/domain/token"
	"github.com/quillmetrics/quill/pkg/logger"
	"github.com/quillmetrics/quill/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	limiterGaugeInterval = 10 * time.Second
	devVisitorSalt       = "quill-dev-salt"
)

func main() {
	// Disable default Go collectors; the service exposes its own set.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	defaultRate := token.RateConfig{
		Limit:  cfg.DefaultLimit,
		Window: time.Duration(cfg.DefaultWindowS) * time.Second,
	}

	limiter := ratelimit.New(
		ratelimit.WithIdleTTL(time.Duration(cfg.LimiterIdleTTLS)*time.Second),
		ratelimit.WithSweepInterval(time.Duration(cfg.LimiterSweepIntervalS)*time.Second),
	)
	limiter.StartJanitor(ctx)
	go limiterGaugeUpdater(ctx, limiter)

	salt := cfg.VisitorSalt
	if salt == "" {
		salt = devVisitorSalt
	}
	anonymizer := anonymize.New(salt)

	var (
		events repository.Store
		tokens token.Store
	)
	if cfg.DevMode {
		events = repository.NewMemoryStore()
		mem := token.NewMemoryStore()
		if err := seedDevToken(mem, cfg, defaultRate); err != nil {
			log.Error(ctx, "failed to seed dev token", logger.Error(err))
			return
		}
		tokens = mem
		log.Info(ctx, "running in dev mode with in-memory stores", logger.String("dev_token", cfg.DevTokenID))
	} else {
		pg, err := repository.NewPostgresStore(ctx, cfg.DBURL)
		if err != nil {
			log.Error(ctx, "failed to connect to postgres", logger.Error(err))
			return
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error(ctx, "failed to apply schema", logger.Error(err))
			return
		}
		events = pg
		tokens = repository.NewPostgresTokenStore(pg)
	}

	verifier := token.NewVerifier(tokens, token.WithDefaultRate(defaultRate))
	svc := app.New(verifier, limiter, anonymizer, events,
		app.WithLogger(log.Named("app")),
		app.WithIngestTimeout(time.Duration(cfg.IngestTimeoutMS)*time.Millisecond),
	)

	mux := http.NewServeMux()
	api.NewServer(svc, cfg.MaxTopResources).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// seedDevToken issues the single dev-mode credential. The raw secret stays
// in config; only its hash enters the store.
func seedDevToken(store *token.MemoryStore, cfg *config.Config, rate token.RateConfig) error {
	hash, err := token.HashSecret(cfg.DevTokenSecret)
	if err != nil {
		return err
	}
	store.Put(token.Token{
		ID:         cfg.DevTokenID,
		SecretHash: hash,
		Limit:      rate.Limit,
		Window:     rate.Window,
		CreatedAt:  time.Now().UTC(),
		Enabled:    true,
	})
	return nil
}

// limiterGaugeUpdater keeps the active-window gauge current.
func limiterGaugeUpdater(ctx context.Context, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(limiterGaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateActiveRateWindows(limiter.Size())
		}
	}
}
