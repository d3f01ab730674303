package output

import (
	"migrator/internal/migrate"
	"migrator/internal/pubkey"
)

const (
	EventRunStarted    = "run.started"
	EventItemSucceeded = "item.succeeded"
	EventItemFailed    = "item.failed"
	EventRunFinished   = "run.finished"
)

// Event is one line of the NDJSON event stream:
//   - run.started
//   - item.succeeded / item.failed (one per item, in completion order)
//   - run.finished
type Event struct {
	Type       string      `json:"type"`
	Collection *pubkey.Key `json:"collection,omitempty"`
	Item       *pubkey.Key `json:"item,omitempty"`
	Signature  string      `json:"sig,omitempty"`
	Error      string      `json:"error,omitempty"`
	Items      int         `json:"items,omitempty"`
	Succeeded  int         `json:"succeeded,omitempty"`
	Failed     int         `json:"failed,omitempty"`
	ExitCode   int         `json:"exit_code,omitempty"`
}

func eventFromOutcome(o migrate.Outcome) Event {
	item := o.Item
	if o.OK() {
		return Event{Type: EventItemSucceeded, Item: &item, Signature: o.Signature}
	}
	return Event{Type: EventItemFailed, Item: &item, Error: o.Err.Error()}
}

func RunStarted(collection pubkey.Key, items int) Event {
	return Event{Type: EventRunStarted, Collection: &collection, Items: items}
}

func RunFinished(collection pubkey.Key, res migrate.BatchResult, exitCode int) Event {
	return Event{
		Type:       EventRunFinished,
		Collection: &collection,
		Items:      res.Len(),
		Succeeded:  len(res.Succeeded),
		Failed:     len(res.Failed),
		ExitCode:   exitCode,
	}
}
