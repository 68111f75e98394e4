package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/txn"
)

// Sequencer arbitrates between many sequences sharing one driver.
//
// Every sequence puts its items on one shared FIFO queue. Run forwards them
// one at a time into the Channel the driver reads from, so the driver sees
// items in exactly the order StartItem was called. There is no priority,
// weighting, or preemption.
//
// Thread-safety model:
//   - StartItem/FinishItem/GetResponse: safe from any number of goroutines
//   - Run: must be called from exactly one goroutine
type Sequencer struct {
	name     string
	capacity int
	chanOpts []exchange.Option
	recorder exchange.Recorder
	logger   *slog.Logger

	queue   *exchange.Queue[txn.Transaction]
	export  *exchange.Channel
	running atomic.Bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithQueueCapacity bounds the shared sequence queue. 0 means unbounded.
func WithQueueCapacity(n int) Option {
	return func(s *Sequencer) {
		s.capacity = n
	}
}

// WithChannelOptions passes options to the Channel the sequencer owns.
func WithChannelOptions(opts ...exchange.Option) Option {
	return func(s *Sequencer) {
		s.chanOpts = append(s.chanOpts, opts...)
	}
}

// WithRecorder sets the trace recorder for the sequencer and its Channel.
func WithRecorder(r exchange.Recorder) Option {
	return func(s *Sequencer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger for the sequencer and its Channel.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Sequencer with its own Channel.
func New(name string, opts ...Option) *Sequencer {
	s := &Sequencer{
		name:     name,
		recorder: exchange.NopRecorder{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("sequencer", name)
	chanOpts := append([]exchange.Option{
		exchange.WithRecorder(s.recorder),
		exchange.WithLogger(s.logger),
	}, s.chanOpts...)

	s.queue = exchange.NewQueue[txn.Transaction](name+" sequence queue", s.capacity)
	s.export = exchange.NewChannel(chanOpts...)
	return s
}

// Name returns the sequencer name.
func (s *Sequencer) Name() string {
	return s.name
}

// Channel returns the export the driver connects to.
func (s *Sequencer) Channel() *exchange.Channel {
	return s.export
}

// Pending returns the number of items queued but not yet forwarded.
func (s *Sequencer) Pending() int {
	return s.queue.Len()
}

// Run forwards queued items into the Channel until ctx is cancelled or
// Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Forwarding one item
// at a time from a single FIFO is what makes arrival order the fetch order.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sequencer %s: already running", s.name)
	}
	defer s.running.Store(false)

	s.logger.Info("sequencer starting")

	for {
		next, err := s.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, exchange.ErrClosed) {
				s.logger.Info("sequencer stopping: queue closed")
				return nil
			}
			s.logger.Info("sequencer stopping: context cancelled")
			return err
		}

		if err := s.export.SubmitRequest(ctx, next); err != nil {
			if errors.Is(err, exchange.ErrClosed) {
				s.logger.Info("sequencer stopping: channel closed")
				return nil
			}
			return fmt.Errorf("forward item %s: %w", next.SeqItem().ID(), err)
		}
		exchange.Trace(ctx, s.recorder, s.logger, exchange.EventForwarded, next.SeqItem())
	}
}

// Stop closes the sequence queue and the Channel, which makes Run return
// and wakes a driver blocked in FetchNext.
func (s *Sequencer) Stop() {
	s.queue.Close()
	s.export.Close()
}

// StartItem queues item and waits until the driver selects it.
// It returns before the producer releases the item, so the caller can
// still populate it.
func (s *Sequencer) StartItem(ctx context.Context, item txn.Transaction) error {
	it, ok := txn.ItemOf(item)
	if !ok {
		return exchange.NewTypeMismatchError("StartItem", item)
	}

	selected := it.Selected().Arm()
	if err := s.queue.Put(ctx, item); err != nil {
		return fmt.Errorf("start item %s: %w", it.ID(), err)
	}
	exchange.Trace(ctx, s.recorder, s.logger, exchange.EventQueued, it)
	s.logger.Debug("item queued", "item_id", it.ID(), "producer_id", it.ProducerID())

	return it.Selected().Await(ctx, selected)
}

// PutReq puts item straight into the Channel, skipping the sequence queue,
// and waits until the driver selects it. Like StartItem it must be
// followed by FinishItem.
//
// Items sent this way may overtake items still waiting in the sequence
// queue.
func (s *Sequencer) PutReq(ctx context.Context, item txn.Transaction) error {
	it, ok := txn.ItemOf(item)
	if !ok {
		return exchange.NewTypeMismatchError("PutReq", item)
	}

	selected := it.Selected().Arm()
	if err := s.export.SubmitRequest(ctx, item); err != nil {
		return fmt.Errorf("put req %s: %w", it.ID(), err)
	}
	exchange.Trace(ctx, s.recorder, s.logger, exchange.EventForwarded, it)
	s.logger.Debug("item put directly", "item_id", it.ID(), "producer_id", it.ProducerID())

	return it.Selected().Await(ctx, selected)
}

// FinishItem releases item to the driver and waits until the driver marks
// it done.
func (s *Sequencer) FinishItem(ctx context.Context, item txn.Transaction) error {
	it, ok := txn.ItemOf(item)
	if !ok {
		return exchange.NewTypeMismatchError("FinishItem", item)
	}

	completed := it.Completed().Arm()
	exchange.Trace(ctx, s.recorder, s.logger, exchange.EventReleased, it)
	if woken := it.Released().Pulse(); woken == 0 {
		s.logger.Debug("released pulse woke nobody", "item_id", it.ID())
	}

	return it.Completed().Await(ctx, completed)
}

// GetResponse returns the response correlated with correlationID, or the
// oldest response when correlationID is "".
func (s *Sequencer) GetResponse(ctx context.Context, correlationID string) (txn.Transaction, error) {
	return s.export.FetchResponse(ctx, correlationID)
}
