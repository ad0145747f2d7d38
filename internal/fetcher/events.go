package fetcher

import (
	"context"
	"time"

	"mfledger/pkg/contracts/domain"
)

// EventKind is the lifecycle stage of one period fetch.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
)

// Event is emitted for every period fetch.
type Event struct {
	Fund     string        `json:"fund"`
	Period   domain.Period `json:"period"`
	Kind     EventKind     `json:"kind"`
	Rows     int           `json:"rows,omitempty"`
	Strategy string        `json:"strategy,omitempty"`
	URL      string        `json:"url,omitempty"`
	// Reason is set on failed events; ErrorType carries the AppError type.
	Reason    string    `json:"reason,omitempty"`
	ErrorType string    `json:"error_type,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink receives fetch events. Implementations must not block for long.
type Sink interface {
	HandleEvent(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) HandleEvent(ctx context.Context, e Event) { f(ctx, e) }

// MultiSink fans an event out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) HandleEvent(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(ctx, e)
		}
	}
}
