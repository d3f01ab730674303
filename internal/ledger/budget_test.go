package ledger

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRequestBudget(t *testing.T) {
	fixedNow := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("unknown budget passes freely", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }
		for i := 0; i < 100; i++ {
			if err := b.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire: %v", err)
			}
		}
		if b.Remaining() != -1 {
			t.Fatalf("Remaining = %d, want -1", b.Remaining())
		}
	})

	t.Run("headers set remaining and decrement", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }

		resp := &http.Response{Header: make(http.Header)}
		resp.Header.Set("X-RateLimit-Remaining", "2")
		resp.Header.Set("X-RateLimit-Reset", "1900000000")
		b.UpdateFromResponse(resp)

		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if b.Remaining() != 1 {
			t.Fatalf("Remaining = %d, want 1", b.Remaining())
		}
	})

	t.Run("exhausted budget blocks until reset", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }

		resp := &http.Response{Header: make(http.Header)}
		resp.Header.Set("X-RateLimit-Remaining", "0")
		resp.Header.Set("X-RateLimit-Reset", "1900000000")
		b.UpdateFromResponse(resp)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("exhausted budget past reset falls back to unknown", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }

		resp := &http.Response{Header: make(http.Header)}
		resp.Header.Set("X-RateLimit-Remaining", "0")
		resp.Header.Set("X-RateLimit-Reset", "1000")
		b.UpdateFromResponse(resp)

		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if b.Remaining() != -1 {
			t.Fatalf("Remaining = %d, want -1", b.Remaining())
		}
	})

	t.Run("retry-after cooldown blocks", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }

		resp := &http.Response{Header: make(http.Header)}
		resp.Header.Set("Retry-After", "60")
		b.UpdateFromResponse(resp)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("update wakes waiters", func(t *testing.T) {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }

		resp := &http.Response{Header: make(http.Header)}
		resp.Header.Set("X-RateLimit-Remaining", "0")
		resp.Header.Set("X-RateLimit-Reset", "1900000000")
		b.UpdateFromResponse(resp)

		done := make(chan error, 1)
		go func() { done <- b.Acquire(context.Background()) }()

		select {
		case err := <-done:
			t.Fatalf("Acquire returned early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}

		refill := &http.Response{Header: make(http.Header)}
		refill.Header.Set("X-RateLimit-Remaining", "5")
		b.UpdateFromResponse(refill)

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Acquire did not wake after refill")
		}
	})

	t.Run("nil response is ignored", func(t *testing.T) {
		b := NewRequestBudget()
		b.UpdateFromResponse(nil)
		var nb *RequestBudget
		nb.UpdateFromResponse(&http.Response{Header: make(http.Header)})
		if err := nb.Acquire(context.Background()); err == nil {
			t.Fatalf("expected error from nil budget")
		}
	})
}
