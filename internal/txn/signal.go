package txn

import (
	"context"
	"sync"
)

// Signal is an edge-triggered, one-shot wake-up.
//
// Pulse wakes only the waiters registered at that instant and then resets
// the signal to idle. A waiter that registers after a pulse is not woken
// by it; it waits for the next one.
//
// To avoid missing a pulse the caller arms the signal BEFORE performing the
// action that lets the other side pulse, then awaits the armed channel:
//
//	woke := it.Selected().Arm()
//	queue.Put(ctx, it)
//	err := it.Selected().Await(ctx, woke)
//
// Thread-safety: all methods are safe for concurrent use.
type Signal struct {
	mu      sync.Mutex
	name    string
	waiters []chan struct{}
}

// NewSignal creates an idle signal. The name only appears in diagnostics.
func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

// Name returns the diagnostic name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Arm registers a waiter and returns the channel the next pulse closes.
func (s *Signal) Arm() <-chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()
	return ch
}

// Pulse wakes every waiter registered at this instant and resets the
// signal. It returns the number of waiters woken; zero means nobody was
// waiting and the pulse is lost.
func (s *Signal) Pulse() int {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return len(waiters)
}

// Await blocks until the armed channel is closed by a pulse or ctx ends.
// On context end the waiter is unregistered so a later pulse does not
// count it.
func (s *Signal) Await(ctx context.Context, armed <-chan struct{}) error {
	select {
	case <-armed:
		return nil
	case <-ctx.Done():
		s.disarm(armed)
		return ctx.Err()
	}
}

// Wait arms the signal and blocks until the next pulse.
func (s *Signal) Wait(ctx context.Context) error {
	return s.Await(ctx, s.Arm())
}

// Waiting returns the number of currently registered waiters.
func (s *Signal) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *Signal) disarm(armed <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.waiters {
		if ch == armed {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
