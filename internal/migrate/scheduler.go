package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"migrator/internal/logging"
	"migrator/internal/metrics"
	"migrator/internal/pubkey"
)

// DefaultConcurrency is the number of items in flight when the caller does
// not choose one.
const DefaultConcurrency = 100

// ErrTaskPanic marks failures caused by a panic inside an item's task.
var ErrTaskPanic = errors.New("task panicked")

// ErrNotStarted marks items skipped because the batch context ended first.
var ErrNotStarted = errors.New("item not started")

// ItemResolver turns one item into exactly one Outcome.
type ItemResolver interface {
	Resolve(ctx context.Context, item pubkey.Key, ref SharedReference) Outcome
}

// Scheduler runs one ItemResolver task per item with bounded concurrency.
type Scheduler struct {
	resolver    ItemResolver
	concurrency int
	observe     func(Outcome)
	log         zerolog.Logger
}

func NewScheduler(r ItemResolver, concurrency int) (*Scheduler, error) {
	if r == nil {
		return nil, errors.New("resolver is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{
		resolver:    r,
		concurrency: concurrency,
		log:         logging.NewLogger("scheduler"),
	}, nil
}

// SetObserver registers fn to be called once per recorded outcome, from the
// goroutine that produced it. fn must be safe for concurrent use. A panic in
// fn is logged and does not affect other items.
func (s *Scheduler) SetObserver(fn func(Outcome)) {
	s.observe = fn
}

func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Run processes every item with at most s.concurrency tasks in flight and
// returns once all of them have finished.
//
// Exactly one outcome is recorded per item. If ctx ends, items that have not
// started yet are recorded as failed with ErrNotStarted and running tasks
// stop at their next remote call.
func (s *Scheduler) Run(ctx context.Context, items []pubkey.Key, ref SharedReference) BatchResult {
	agg := NewAggregator(len(items))

	record := func(o Outcome) {
		agg.Record(o)
		s.report(o)
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	skipFrom := -1
scheduleLoop:
	for i, item := range items {
		if ctx.Err() != nil {
			skipFrom = i
			break
		}
		select {
		case sem <- struct{}{}:
			// acquired
		case <-ctx.Done():
			skipFrom = i
			break scheduleLoop
		}

		wg.Add(1)
		go func(item pubkey.Key) {
			defer wg.Done()
			defer func() { <-sem }()
			record(s.runTask(ctx, item, ref))
		}(item)
	}

	if skipFrom >= 0 {
		cause := fmt.Errorf("%w: %w", ErrNotStarted, ctx.Err())
		for _, item := range items[skipFrom:] {
			record(Failed(item, cause))
		}
	}

	wg.Wait()
	return agg.Finalize()
}

// report publishes a recorded outcome to metrics, logs and the observer. A
// panic here is logged and swallowed; the outcome is already recorded.
func (s *Scheduler) report(o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserverPanicsTotal.Inc()
			s.log.Error().Str("item", o.Item.String()).Interface("panic", r).Msg("outcome observer panicked")
		}
	}()

	if o.OK() {
		metrics.ItemsTotal.WithLabelValues("success").Inc()
		s.log.Debug().Str("item", o.Item.String()).Str("signature", o.Signature).Msg("item migrated")
	} else {
		metrics.ItemsTotal.WithLabelValues("failure").Inc()
		s.log.Warn().Str("item", o.Item.String()).Err(o.Err).Msg("item failed")
	}
	if s.observe != nil {
		s.observe(o)
	}
}

// runTask isolates one item: a panic becomes a failed outcome instead of
// taking down sibling tasks.
func (s *Scheduler) runTask(ctx context.Context, item pubkey.Key, ref SharedReference) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(item, fmt.Errorf("%w: %v", ErrTaskPanic, r))
		}
	}()
	out = s.resolver.Resolve(ctx, item, ref)
	out.Item = item
	return out
}
