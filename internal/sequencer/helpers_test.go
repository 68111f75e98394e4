package sequencer

import (
	"context"
	"sync"

	"github.com/roach88/seqx/internal/exchange"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[exchange.EventKind]int
}

func (r *countingRecorder) Record(_ context.Context, ev exchange.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[ev.Kind]++
	return nil
}
