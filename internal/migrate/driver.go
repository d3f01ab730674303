package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"migrator/internal/accounts"
	"migrator/internal/logging"
	"migrator/internal/pubkey"
)

var (
	ErrStateLookup   = errors.New("migration state lookup failed")
	ErrDuplicateItem = errors.New("duplicate item")
)

// StateLookup returns the current migration state of a collection.
// *accounts.StateReader satisfies it.
type StateLookup interface {
	GetState(ctx context.Context, collection pubkey.Key) (accounts.MigrationState, error)
}

// Driver runs one batch: a single state lookup, then the scheduler.
type Driver struct {
	state     StateLookup
	scheduler *Scheduler
	log       zerolog.Logger
}

func NewDriver(state StateLookup, scheduler *Scheduler) (*Driver, error) {
	if state == nil {
		return nil, errors.New("state lookup is nil")
	}
	if scheduler == nil {
		return nil, errors.New("scheduler is nil")
	}
	return &Driver{state: state, scheduler: scheduler, log: logging.NewLogger("driver")}, nil
}

// Run migrates items into collection. The returned error is non-nil only when
// the batch could not start; per-item failures are reported in BatchResult.
func (d *Driver) Run(ctx context.Context, items []pubkey.Key, collection pubkey.Key) (BatchResult, error) {
	if dup, ok := firstDuplicate(items); ok {
		return BatchResult{}, fmt.Errorf("%w: %s", ErrDuplicateItem, dup)
	}

	st, err := d.state.GetState(ctx, collection)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: collection %s: %w", ErrStateLookup, collection, err)
	}
	ref := SharedReference{Collection: collection, RuleSet: st.CollectionInfo.RuleSet}

	d.log.Info().
		Str("collection", collection.String()).
		Str("rule_set", ref.RuleSet.String()).
		Int("items", len(items)).
		Int("concurrency", d.scheduler.Concurrency()).
		Msg("migration batch started")

	start := time.Now()
	res := d.scheduler.Run(ctx, items, ref)

	d.log.Info().
		Str("collection", collection.String()).
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg("migration batch finished")
	return res, nil
}

func firstDuplicate(items []pubkey.Key) (pubkey.Key, bool) {
	seen := make(map[pubkey.Key]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			return it, true
		}
		seen[it] = struct{}{}
	}
	return pubkey.Key{}, false
}
