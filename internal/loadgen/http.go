package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/quillmetrics/quill/pkg/logger"
)

// submitEvents posts the batch with a pool of concurrent workers.
func submitEvents(ctx context.Context, cfg *Config, events []event, stats *Stats) error {
	client := &http.Client{Timeout: cfg.Timeout}

	var accepted, limited, rejected atomic.Int64
	jobs := make(chan event)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				status, err := postEvent(ctx, client, cfg, e)
				switch {
				case err != nil:
					rejected.Add(1)
					if cfg.Verbose {
						logger.Get().Warn(ctx, "submit failed", logger.Error(err))
					}
				case status == http.StatusAccepted:
					accepted.Add(1)
				case status == http.StatusTooManyRequests:
					limited.Add(1)
				default:
					rejected.Add(1)
					if cfg.Verbose {
						logger.Get().Warn(ctx, "event rejected", logger.Int("status", status))
					}
				}
			}
		}()
	}

	for _, e := range events {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- e:
		}
	}
	close(jobs)
	wg.Wait()

	stats.Accepted = int(accepted.Load())
	stats.RateLimited = int(limited.Load())
	stats.Rejected = int(rejected.Load())
	return nil
}

func postEvent(ctx context.Context, client *http.Client, cfg *Config, e event) (int, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Origin-Token", cfg.TokenID)
	req.Header.Set("X-Origin-Secret", cfg.TokenSecret)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// fetchStats reads the aggregate surface for the run's token.
func fetchStats(ctx context.Context, cfg *Config) (*statsResponse, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/stats?token="+cfg.TokenID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats returned status %d", resp.StatusCode)
	}

	var out statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// checkServiceHealth verifies the target answers on /healthz.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	client := &http.Client{Timeout: cfg.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
