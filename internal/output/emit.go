package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"migrator/internal/migrate"
)

// EventSink streams Event values as NDJSON, one object per line. It accepts
// both migrate.Outcome and Event.
type EventSink struct {
	writer io.Writer
	closer io.Closer
	mu     sync.Mutex
}

func NewEventSink(w io.Writer) (*EventSink, error) {
	if w == nil {
		return nil, fmt.Errorf("event sink writer must not be nil")
	}
	s := &EventSink{writer: w}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

func (s *EventSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e Event
	switch t := v.(type) {
	case Event:
		e = t
	case migrate.Outcome:
		e = eventFromOutcome(t)
	default:
		return nil
	}
	if err := json.NewEncoder(s.writer).Encode(e); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
