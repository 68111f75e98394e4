package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/seqx/internal/exchange"
)

// createTestStore opens a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func event(kind exchange.EventKind, item, corr string) exchange.Event {
	return exchange.Event{
		Kind:          kind,
		ItemID:        item,
		ItemName:      "req",
		ProducerID:    "seq-A",
		CorrelationID: corr,
	}
}
