package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out "<prefix>-0001", "<prefix>-0002", ... so item ids
// in golden files stay stable across runs. Safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs returns a source whose ids start with prefix.
// An empty prefix becomes "item".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "item"
	}
	return &SequentialIDs{prefix: prefix}
}

// NextID implements txn.IDSource.
func (s *SequentialIDs) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// FixedID returns the same id every time. Two items drawn from it share a
// correlation id, which is how tests provoke DUPLICATE_CORRELATION_ID.
type FixedID string

// NextID implements txn.IDSource.
func (f FixedID) NextID() string {
	return string(f)
}
