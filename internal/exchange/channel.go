package exchange

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/seqx/internal/txn"
)

// DriverPort is the consumer-facing view of a Channel.
//
// A driver calls FetchNext, processes the item, then calls MarkDone exactly
// once before the next FetchNext:
//
//	for {
//	    req, err := port.FetchNext(ctx)
//	    ...
//	    rsp := newResponse(req)
//	    err = port.MarkDone(rsp)
//	}
type DriverPort interface {
	FetchNext(ctx context.Context) (txn.Transaction, error)
	MarkDone(rsp txn.Transaction) error
	Put(rsp txn.Transaction) error
}

// SequencerPort is the producer-facing view of a Channel.
type SequencerPort interface {
	SubmitRequest(ctx context.Context, req txn.Transaction) error
	SubmitResponse(rsp txn.Transaction) error
	FetchResponse(ctx context.Context, correlationID string) (txn.Transaction, error)
}

// DefaultCapacity is the default request and response capacity (unbounded).
const DefaultCapacity = 0

// Option configures a Channel.
type Option func(*Channel)

// WithRequestCapacity bounds the request queue. 0 means unbounded.
func WithRequestCapacity(n int) Option {
	return func(c *Channel) {
		c.requestCapacity = n
	}
}

// WithResponseCapacity bounds the response store. 0 means unbounded.
func WithResponseCapacity(n int) Option {
	return func(c *Channel) {
		c.responseCapacity = n
	}
}

// WithRecorder sets the trace recorder. Default: NopRecorder.
func WithRecorder(r Recorder) Option {
	return func(c *Channel) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// Channel is the request/response hand-off point between sequences and the
// single driver.
//
// INVARIANTS:
//   - current is non-nil between a FetchNext that returned an item and the
//     matching MarkDone
//   - at most one FetchNext is in progress at a time
//
// Thread-safety: all methods are safe for concurrent use, but the
// fetch/mark-done protocol assumes a single consumer.
type Channel struct {
	requestCapacity  int
	responseCapacity int
	recorder         Recorder
	logger           *slog.Logger

	requests  *Queue[txn.Transaction]
	responses *ResponseStore

	mu       sync.Mutex
	fetching bool
	current  txn.Transaction
}

var (
	_ DriverPort    = (*Channel)(nil)
	_ SequencerPort = (*Channel)(nil)
)

// NewChannel creates a Channel.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		requestCapacity:  DefaultCapacity,
		responseCapacity: DefaultCapacity,
		recorder:         NopRecorder{},
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.requests = NewQueue[txn.Transaction]("request queue", c.requestCapacity)
	c.responses = NewResponseStore(c.responseCapacity, c.logger)
	return c
}

// FetchNext takes the next request, tells its producer it was selected,
// and waits until the producer releases it.
//
// Fails with PROTOCOL_ERROR if an item is already checked out or another
// FetchNext is in progress. If ctx ends before the producer releases the
// item, the item is dropped from the channel (it is not completed) and the
// next FetchNext may proceed.
func (c *Channel) FetchNext(ctx context.Context) (txn.Transaction, error) {
	c.mu.Lock()
	if c.fetching || c.current != nil {
		c.mu.Unlock()
		return nil, NewProtocolError("you must call MarkDone before calling FetchNext again")
	}
	c.fetching = true
	c.mu.Unlock()

	req, err := c.requests.Get(ctx)
	if err != nil {
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
		return nil, err
	}
	it := req.SeqItem()

	// Arm before pulsing selected: the producer may release immediately.
	released := it.Released().Arm()

	c.mu.Lock()
	c.current = req
	c.fetching = false
	c.mu.Unlock()

	Trace(ctx, c.recorder, c.logger, EventSelected, it)
	if woken := it.Selected().Pulse(); woken == 0 {
		c.logger.Debug("selected pulse woke nobody", "item_id", it.ID())
	}

	if err := it.Released().Await(ctx, released); err != nil {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		return nil, err
	}

	Trace(ctx, c.recorder, c.logger, EventFetched, it)
	c.logger.Debug("item fetched", "item_id", it.ID(), "producer_id", it.ProducerID())
	return req, nil
}

// MarkDone completes the checked-out item and, if rsp is non-nil, stores
// it as a response.
//
// Fails with TYPE_MISMATCH (before any state change) if rsp carries no
// sequence item, and with PROTOCOL_ERROR if no item is checked out.
func (c *Channel) MarkDone(rsp txn.Transaction) error {
	if rsp != nil {
		if _, ok := txn.ItemOf(rsp); !ok {
			return NewTypeMismatchError("MarkDone", rsp)
		}
	}

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return NewProtocolError("you must call FetchNext before calling MarkDone")
	}
	cur := c.current.SeqItem()
	c.current = nil
	c.mu.Unlock()

	ctx := context.Background()
	if woken := cur.Completed().Pulse(); woken == 0 {
		c.logger.Debug("completed pulse woke nobody", "item_id", cur.ID())
	}
	Trace(ctx, c.recorder, c.logger, EventCompleted, cur)

	if rsp == nil {
		return nil
	}
	return c.insertResponse(ctx, rsp)
}

// Put stores a response without completing an item. Used by drivers that
// call MarkDone(nil) and send the response separately.
func (c *Channel) Put(rsp txn.Transaction) error {
	if _, ok := txn.ItemOf(rsp); !ok {
		return NewTypeMismatchError("Put", rsp)
	}
	return c.insertResponse(context.Background(), rsp)
}

// SubmitRequest appends req to the request queue, waiting while a bounded
// queue is full.
func (c *Channel) SubmitRequest(ctx context.Context, req txn.Transaction) error {
	if _, ok := txn.ItemOf(req); !ok {
		return NewTypeMismatchError("SubmitRequest", req)
	}
	return c.requests.Put(ctx, req)
}

// SubmitResponse stores rsp without waiting.
func (c *Channel) SubmitResponse(rsp txn.Transaction) error {
	return c.Put(rsp)
}

// FetchResponse returns the response with the given correlation id, or the
// oldest response when correlationID is "".
func (c *Channel) FetchResponse(ctx context.Context, correlationID string) (txn.Transaction, error) {
	var (
		rsp txn.Transaction
		err error
	)
	if correlationID == "" {
		rsp, err = c.responses.Retrieve(ctx)
	} else {
		rsp, err = c.responses.RetrieveByID(ctx, correlationID)
	}
	if err != nil {
		return nil, err
	}

	Trace(ctx, c.recorder, c.logger, EventResponseRetrieved, rsp.SeqItem())
	return rsp, nil
}

// Current returns the checked-out item, or nil.
func (c *Channel) Current() txn.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Pending returns the number of requests waiting to be fetched.
func (c *Channel) Pending() int {
	return c.requests.Len()
}

// Responses exposes the response store for inspection.
func (c *Channel) Responses() *ResponseStore {
	return c.responses
}

// Close closes the request queue, waking a blocked FetchNext.
func (c *Channel) Close() {
	c.requests.Close()
}

func (c *Channel) insertResponse(ctx context.Context, rsp txn.Transaction) error {
	if err := c.responses.Insert(rsp); err != nil {
		return err
	}
	Trace(ctx, c.recorder, c.logger, EventResponseInserted, rsp.SeqItem())
	return nil
}
