package migrate

import "sync"

// Aggregator collects outcomes from concurrent tasks. Record is safe for
// concurrent use; Finalize must only be called once all writers are done.
type Aggregator struct {
	mu        sync.Mutex
	succeeded []Success
	failed    []Failure
}

// NewAggregator returns an empty Aggregator sized for capacity outcomes.
func NewAggregator(capacity int) *Aggregator {
	if capacity < 0 {
		capacity = 0
	}
	return &Aggregator{
		succeeded: make([]Success, 0, capacity),
	}
}

// Record appends o to the successes or the failures.
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if o.OK() {
		a.succeeded = append(a.succeeded, Success{Signature: o.Signature, Item: o.Item})
		return
	}
	a.failed = append(a.failed, Failure{Item: o.Item, Error: o.Err.Error()})
}

// Finalize hands the collected sequences to the caller. The aggregator is
// empty afterwards.
func (a *Aggregator) Finalize() BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := BatchResult{Succeeded: a.succeeded, Failed: a.failed}
	if res.Succeeded == nil {
		res.Succeeded = []Success{}
	}
	if res.Failed == nil {
		res.Failed = []Failure{}
	}
	a.succeeded = nil
	a.failed = nil
	return res
}
