package ledger

import (
	"context"
	"math/rand"
	"time"

	"migrator/internal/metrics"
)

type RetryConfig struct {
	// MaxAttempts counts the initial request. 1 disables retries.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// withRetry runs fn until it succeeds, fails with a non-retryable class, or
// attempts run out. Backoff gets up to 20% jitter so parallel items spread out.
func (c *Client) withRetry(ctx context.Context, method string, fn func() error) error {
	cfg := c.retry
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.log.Debug().Str("method", method).Int("attempt", attempt).Msg("rpc call succeeded after retry")
			}
			return nil
		}
		lastErr = err

		class := classify(err)
		if !shouldRetry(class) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		wait := backoff
		if wait > 0 {
			wait += time.Duration(rand.Float64() * 0.2 * float64(wait))
		}
		if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		metrics.RPCRetriesTotal.WithLabelValues(string(class)).Inc()
		c.log.Warn().
			Str("method", method).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("retrying rpc call")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if cfg.BackoffMultiplier > 0 {
			backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		}
	}
	return lastErr
}
