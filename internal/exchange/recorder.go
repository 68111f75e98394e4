package exchange

import (
	"context"
	"log/slog"

	"github.com/roach88/seqx/internal/txn"
)

// EventKind names a step of the item exchange.
type EventKind string

const (
	EventQueued            EventKind = "queued"             // start_item put the item on the sequencer queue
	EventForwarded         EventKind = "forwarded"          // the sequencer moved it into the channel
	EventSelected          EventKind = "selected"           // the consumer picked it
	EventReleased          EventKind = "released"           // finish_item handed it over
	EventFetched           EventKind = "fetched"            // FetchNext returned it
	EventCompleted         EventKind = "completed"          // MarkDone finished it
	EventResponseInserted  EventKind = "response_inserted"  // a response entered the store
	EventResponseRetrieved EventKind = "response_retrieved" // a producer took a response
)

// Event is one trace record.
type Event struct {
	Kind          EventKind `json:"kind"`
	ItemID        string    `json:"item_id"`
	ItemName      string    `json:"item_name"`
	ProducerID    string    `json:"producer_id,omitempty"`
	CorrelationID string    `json:"correlation_id"`
}

// NewEvent builds an event describing it.
func NewEvent(kind EventKind, it *txn.Item) Event {
	return Event{
		Kind:          kind,
		ItemID:        it.ID(),
		ItemName:      it.Name(),
		ProducerID:    it.ProducerID(),
		CorrelationID: it.CorrelationID(),
	}
}

// Recorder receives trace events. Implemented by store.RunRecorder.
//
// Record is called synchronously on the goroutine performing the step, so
// the order of Record calls from one goroutine is the order of its steps.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// NopRecorder discards every event.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Event) error { return nil }

// Trace records an event for it through r. A failed trace write is logged
// and never fails the exchange step itself.
func Trace(ctx context.Context, r Recorder, logger *slog.Logger, kind EventKind, it *txn.Item) {
	ev := NewEvent(kind, it)
	if err := r.Record(ctx, ev); err != nil {
		logger.Error("trace record failed",
			"kind", ev.Kind,
			"item_id", ev.ItemID,
			"error", err,
		)
	}
}
