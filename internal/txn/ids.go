package txn

import (
	"github.com/google/uuid"
)

// IDSource supplies globally unique identifiers for items and sequences.
// Implemented by UUIDv7Source (production) and testutil.SequentialIDs (tests).
type IDSource interface {
	NextID() string
}

// UUIDv7Source generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time in traces.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// NextID returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) NextID() string {
	return uuid.Must(uuid.NewV7()).String()
}
