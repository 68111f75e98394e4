package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/seqx/internal/exchange"
)

// TraceEvent is a stored exchange event.
type TraceEvent struct {
	RunID string `json:"run_id"`
	Seq   int64  `json:"seq"`
	exchange.Event
}

// Run summarizes one recorded run.
type Run struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartedAt string `json:"started_at"`
	Events    int    `json:"events"`
}

// ReadRun returns every event of runID ordered by seq.
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, item_id, item_name, producer_id, correlation_id
		FROM trace_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	return scanEvents(rows)
}

// ReadCorrelation returns the events of runID that share correlationID:
// the request's own steps and those of its responses.
func (s *Store) ReadCorrelation(ctx context.Context, runID, correlationID string) ([]TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, item_id, item_name, producer_id, correlation_id
		FROM trace_events
		WHERE run_id = ? AND correlation_id = ?
		ORDER BY seq ASC
	`, runID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query correlation: %w", err)
	}
	return scanEvents(rows)
}

// FetchOrder returns the ids of items in the order the consumer selected them.
func (s *Store) FetchOrder(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id FROM trace_events
		WHERE run_id = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, string(exchange.EventSelected))
	if err != nil {
		return nil, fmt.Errorf("query fetch order: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch order: %w", err)
	}
	return ids, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.started_at, COUNT(e.seq)
		FROM runs r
		LEFT JOIN trace_events e ON e.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.StartedAt, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest seq recorded for runID, or 0.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM trace_events WHERE run_id = ?", runID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvents(rows *sql.Rows) ([]TraceEvent, error) {
	defer rows.Close()

	events := []TraceEvent{}
	for rows.Next() {
		var (
			ev   TraceEvent
			kind string
		)
		if err := rows.Scan(&ev.RunID, &ev.Seq, &kind, &ev.ItemID, &ev.ItemName, &ev.ProducerID, &ev.CorrelationID); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		ev.Kind = exchange.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}
	return events, nil
}
