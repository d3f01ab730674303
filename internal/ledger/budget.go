package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RequestBudget throttles RPC calls using the provider's rate-limit headers.
//
// Until a response carries X-RateLimit-Remaining the budget is unknown and
// requests pass freely. A Retry-After header puts every caller into a shared
// cooldown.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int // -1 while unknown
	reset     time.Time
	cooldown  time.Time
	now       func() time.Time
	notifyCh  chan struct{}
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: -1,
		now:       time.Now,
		notifyCh:  make(chan struct{}),
	}
}

// Remaining returns the last observed remaining quota, or -1 if unknown.
func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire blocks until one request may be sent or ctx is done.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	if b == nil {
		return errors.New("Acquire: nil RequestBudget")
	}
	for {
		b.mu.Lock()
		now := b.now()

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case b.remaining == 0 && now.Before(b.reset):
			until = b.reset
		case b.remaining == 0:
			// Window rolled over without a fresh header; fall back to unknown.
			b.remaining = -1
			b.mu.Unlock()
			return nil
		default:
			if b.remaining > 0 {
				b.remaining--
			}
			b.mu.Unlock()
			return nil
		}

		ch := b.notifyCh
		b.mu.Unlock()

		timer := time.NewTimer(until.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-ch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// UpdateFromResponse folds rate-limit headers from resp into the budget and
// wakes waiters if anything changed.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
				changed = true
			}
		}
	}

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n != b.remaining {
			b.remaining = n
			changed = true
		}
	}

	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil && unix > 0 {
			r := time.Unix(unix, 0)
			if !b.reset.Equal(r) {
				b.reset = r
				changed = true
			}
		}
	}

	if changed {
		close(b.notifyCh)
		b.notifyCh = make(chan struct{})
	}
}
