package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/seqx/internal/exchange"
)

// ErrRunExists is returned by BeginRun for a run id already in the store.
var ErrRunExists = errors.New("run already recorded")

// Clock stamps trace events. exchange.Clock and testutil.StepClock both fit.
type Clock interface {
	Next() int64
}

// BeginRun registers a run. Each run id can be registered once; a second
// BeginRun with the same id fails with ErrRunExists, since the new run's
// events would collide with the recorded ones.
func (s *Store) BeginRun(ctx context.Context, runID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name) VALUES (?, ?)
	`, runID, name)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("begin run %s: %w", runID, ErrRunExists)
		}
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RunRecorder writes exchange events of one run to the store.
// It implements exchange.Recorder.
type RunRecorder struct {
	store *Store
	runID string
	clock Clock

	// mu keeps seq order equal to insert order across goroutines.
	mu sync.Mutex
}

// Recorder returns a recorder for runID stamping events with clock.
// A nil clock gets a fresh exchange.Clock.
func (s *Store) Recorder(runID string, clock Clock) *RunRecorder {
	if clock == nil {
		clock = exchange.NewClock()
	}
	return &RunRecorder{store: s, runID: runID, clock: clock}
}

// RunID returns the run this recorder writes to.
func (r *RunRecorder) RunID() string {
	return r.runID
}

// Record implements exchange.Recorder.
func (r *RunRecorder) Record(ctx context.Context, ev exchange.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.clock.Next()
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_id, seq, kind, item_id, item_name, producer_id, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.runID,
		seq,
		string(ev.Kind),
		ev.ItemID,
		ev.ItemName,
		ev.ProducerID,
		ev.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", ev.Kind, ev.ItemID, err)
	}
	return nil
}
