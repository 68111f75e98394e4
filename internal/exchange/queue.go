package exchange

import (
	"context"
	"sync"
)

// Queue is a thread-safe FIFO with optional capacity.
//
// Capacity 0 means unbounded. Put waits while a bounded queue is full;
// TryPut fails with CAPACITY_EXCEEDED instead of waiting.
//
// Waiting uses buffered (size 1) notify channels so it can be combined with
// context cancellation. A buffer of one coalesces signals, so whoever takes
// a value re-signals when more remain; no second waiter is left asleep
// while the queue is non-empty.
type Queue[T any] struct {
	name     string
	capacity int

	mu     sync.Mutex
	items  []T
	closed bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

// NewQueue creates an empty queue. The name only appears in errors.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		name:     name,
		capacity: capacity,
		items:    make([]T, 0, 16),
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Capacity returns the configured capacity (0 = unbounded).
func (q *Queue[T]) Capacity() int {
	return q.capacity
}

// TryPut appends v without waiting.
// Returns CAPACITY_EXCEEDED if the queue is bounded and full, ErrClosed if
// the queue has been closed.
func (q *Queue[T]) TryPut(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.full() {
		return NewCapacityError(q.name, q.capacity)
	}

	q.items = append(q.items, v)
	notify(q.notEmpty)
	if q.capacity > 0 && !q.full() {
		notify(q.notFull)
	}
	return nil
}

// Put appends v, waiting while the queue is full.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	for {
		err := q.TryPut(v)
		if !IsCapacityExceeded(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrClosed
		case <-q.notFull:
		}
	}
}

// TryGet removes and returns the front value without waiting.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]

	// Nil out the slot so the backing array does not retain the value.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	if len(q.items) > 0 {
		notify(q.notEmpty)
	}
	if q.capacity > 0 {
		notify(q.notFull)
	}
	return v, true
}

// Get removes and returns the front value, waiting while the queue is empty.
// After Close, Get drains what remains and then returns ErrClosed.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok := q.TryGet(); ok {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.done:
			if v, ok := q.TryGet(); ok {
				return v, nil
			}
			return zero, ErrClosed
		case <-q.notEmpty:
		}
	}
}

// Len returns the current queue length.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close signals that no more values will be put.
// Wakes every blocked Put and Get.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue[T]) full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

// notify performs a non-blocking send on a size-1 signal channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
