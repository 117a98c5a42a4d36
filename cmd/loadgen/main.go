package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/quillmetrics/quill/internal/loadgen"
	"github.com/quillmetrics/quill/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents  = 5000
	defaultVisitors   = 256
	defaultTimeout    = 10 * time.Second
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		tokenID   = flag.String("token", "dev", "Origin token id")
		secret    = flag.String("secret", "dev-secret", "Origin token secret")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to submit")
		workers   = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent workers")
		visitors  = flag.Int("visitors", defaultVisitors, "Size of the synthetic visitor pool")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every rejection")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:     *baseURL,
		TokenID:     *tokenID,
		TokenSecret: *secret,
		NumEvents:   *numEvents,
		Workers:     *workers,
		Visitors:    *visitors,
		Timeout:     *timeout,
		Verbose:     *verbose,
	}

	if err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
