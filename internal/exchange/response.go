package exchange

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/seqx/internal/txn"
)

// ResponseStore holds responses until their producers collect them.
//
// Responses come out either oldest-first (Retrieve) or by correlation id
// (RetrieveByID). Every Insert pulses a shared signal that wakes all
// current id-waiters, each of which rescans the whole store. This is O(n)
// per waiter per insert and is the reference behaviour; an index from id
// to a per-id signal would scale better but must keep the same
// "insert wakes the right waiter" contract.
//
// INVARIANT: at most one stored response per correlation id. A violation
// is reported by RetrieveByID as DUPLICATE_CORRELATION_ID.
type ResponseStore struct {
	capacity int
	logger   *slog.Logger

	mu       sync.Mutex
	items    []txn.Transaction
	inserted *txn.Signal
}

// NewResponseStore creates an empty store. Capacity 0 means unbounded.
func NewResponseStore(capacity int, logger *slog.Logger) *ResponseStore {
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseStore{
		capacity: capacity,
		logger:   logger,
		inserted: txn.NewSignal("response inserted"),
	}
}

// Insert appends rsp and wakes every waiting retriever.
// Never waits: a full bounded store fails with CAPACITY_EXCEEDED.
func (s *ResponseStore) Insert(rsp txn.Transaction) error {
	it, ok := txn.ItemOf(rsp)
	if !ok {
		return NewTypeMismatchError("put_response", rsp)
	}

	s.mu.Lock()
	if s.capacity > 0 && len(s.items) >= s.capacity {
		s.mu.Unlock()
		return NewCapacityError("response store", s.capacity)
	}
	s.items = append(s.items, rsp)
	s.mu.Unlock()

	woken := s.inserted.Pulse()
	s.logger.Debug("response inserted",
		"item_id", it.ID(),
		"correlation_id", it.CorrelationID(),
		"waiters_woken", woken,
	)
	return nil
}

// Retrieve removes and returns the oldest response, waiting while the
// store is empty.
func (s *ResponseStore) Retrieve(ctx context.Context) (txn.Transaction, error) {
	for {
		s.mu.Lock()
		if len(s.items) > 0 {
			rsp := s.removeAt(0)
			s.mu.Unlock()
			return rsp, nil
		}
		// Armed under the lock: an Insert after this point must pulse us.
		woke := s.inserted.Arm()
		s.mu.Unlock()

		if err := s.inserted.Await(ctx, woke); err != nil {
			return nil, err
		}
	}
}

// RetrieveByID removes and returns the response whose correlation id is id.
// If it is present it returns at once; otherwise it waits for the next
// insert and rescans, until the response appears.
func (s *ResponseStore) RetrieveByID(ctx context.Context, id string) (txn.Transaction, error) {
	for {
		s.mu.Lock()
		idx, count := s.find(id)
		if count > 1 {
			s.mu.Unlock()
			return nil, NewDuplicateIDError(id, count)
		}
		if count == 1 {
			rsp := s.removeAt(idx)
			s.mu.Unlock()
			return rsp, nil
		}
		woke := s.inserted.Arm()
		s.mu.Unlock()

		if err := s.inserted.Await(ctx, woke); err != nil {
			return nil, err
		}
	}
}

// Len returns the number of stored responses.
func (s *ResponseStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CorrelationIDs returns the correlation ids currently stored, oldest first.
func (s *ResponseStore) CorrelationIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for _, rsp := range s.items {
		ids = append(ids, rsp.SeqItem().CorrelationID())
	}
	return ids
}

// Waiting returns the number of retrievers blocked on the store.
func (s *ResponseStore) Waiting() int {
	return s.inserted.Waiting()
}

// find returns the index of the first match and the number of matches.
// Caller must hold s.mu.
func (s *ResponseStore) find(id string) (int, int) {
	idx, count := -1, 0
	for i, rsp := range s.items {
		if rsp.SeqItem().CorrelationID() == id {
			if count == 0 {
				idx = i
			}
			count++
		}
	}
	return idx, count
}

// removeAt removes the response at i. Caller must hold s.mu.
func (s *ResponseStore) removeAt(i int) txn.Transaction {
	rsp := s.items[i]
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	return rsp
}
