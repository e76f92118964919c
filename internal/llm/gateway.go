package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// GatewayConfig holds throttling and retry parameters. The defaults stay
// under the provider's request-rate ceiling with two documents in flight.
type GatewayConfig struct {
	MaxConcurrent int           // in-flight call cap, process-wide
	CallDelay     time.Duration // minimum delay after each call before the slot is released
	MaxAttempts   int           // total attempts per call on rate-limit responses
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffJitter float64 // fraction, e.g. 0.1 for ±10%
}

// Gateway throttles and retries calls to a ChatClient. A single Gateway is
// shared by every document being processed, so the semaphore bounds the whole
// process. Backoff sleeps happen while the capacity slot is held, so a
// rate-limited provider sees fewer in-flight calls while we wait.
type Gateway struct {
	client ChatClient
	sem    *semaphore.Weighted
	cfg    GatewayConfig
	logger *slog.Logger
}

func NewGateway(client ChatClient, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.CallDelay < 0 {
		cfg.CallDelay = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 60 * time.Second
	}
	return &Gateway{
		client: client,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:    cfg,
		logger: logger,
	}
}

// Invoke runs one model call under the gateway's policy. Rate-limit responses
// are retried with exponential backoff and jitter; any other failure, or
// retry exhaustion, is terminal for this call. The caller decides whether
// that is fatal to the document or just to one page/category.
func (g *Gateway) Invoke(ctx context.Context, req ChatRequest) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer func() {
		g.pause(ctx, g.cfg.CallDelay)
		g.sem.Release(1)
	}()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		out, err := g.client.Complete(ctx, req)
		if err == nil {
			g.logger.Debug("gateway.ok",
				"model", req.Model,
				"attempts", attempt+1,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, nil
		}
		if !IsRateLimited(err) {
			return "", fmt.Errorf("%w: %v", common.ErrModel, err)
		}
		lastErr = err
		if attempt == g.cfg.MaxAttempts-1 {
			break
		}
		delay := g.backoffDelay(attempt)
		g.logger.Warn("gateway.rate_limited",
			"model", req.Model,
			"attempt", attempt+1,
			"retry_in_ms", delay.Milliseconds(),
		)
		if !g.pause(ctx, delay) {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%w: %d attempts exhausted: %v", common.ErrRateLimited, g.cfg.MaxAttempts, lastErr)
}

// backoffDelay returns min(base*2^attempt, cap) with jitter applied.
func (g *Gateway) backoffDelay(attempt int) time.Duration {
	d := g.cfg.BackoffBase << uint(attempt)
	if d > g.cfg.BackoffCap || d <= 0 {
		d = g.cfg.BackoffCap
	}
	if j := g.cfg.BackoffJitter; j > 0 {
		f := 1 + (rand.Float64()*2-1)*j
		d = time.Duration(float64(d) * f)
	}
	return d
}

// pause sleeps for d unless the context ends first. Returns false on cancel.
func (g *Gateway) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
