package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/txn"
)

// Sequencer is what a sequence needs from its partner.
// Implemented by *sequencer.Sequencer.
type Sequencer interface {
	StartItem(ctx context.Context, item txn.Transaction) error
	FinishItem(ctx context.Context, item txn.Transaction) error
	GetResponse(ctx context.Context, correlationID string) (txn.Transaction, error)
}

// State is the lifecycle state of a Sequence.
type State int

const (
	NotStarted State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Body is the user-authored part of a sequence. It runs on the goroutine
// that called Start.
type Body func(ctx context.Context, s *Sequence) error

// Hook runs before or after the body.
type Hook func(ctx context.Context, s *Sequence) error

// Option configures a Sequence.
type Option func(*Sequence)

// WithID sets an explicit sequence id.
func WithID(id string) Option {
	return func(s *Sequence) {
		s.id = id
	}
}

// WithIDSource draws the sequence id from src.
func WithIDSource(src txn.IDSource) Option {
	return func(s *Sequence) {
		s.id = src.NextID()
	}
}

// WithPreBody sets a hook run before the body.
func WithPreBody(h Hook) Option {
	return func(s *Sequence) {
		s.preBody = h
	}
}

// WithPostBody sets a hook run after the body.
func WithPostBody(h Hook) Option {
	return func(s *Sequence) {
		s.postBody = h
	}
}

// WithoutPrePost skips the pre and post body hooks.
func WithoutPrePost() Option {
	return func(s *Sequence) {
		s.callPrePost = false
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequence) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sequence produces items for a sequencer and collects their responses.
//
// Lifecycle: NOT_STARTED → RUNNING → DONE. Start binds the sequencer and
// runs preBody, body, postBody in order. A sequence started without a
// sequencer is virtual: it may start child sequences, but its own item
// operations fail with NOT_BOUND.
type Sequence struct {
	id          string
	name        string
	body        Body
	preBody     Hook
	postBody    Hook
	callPrePost bool
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	seqr    Sequencer
	running txn.Transaction
}

// New creates a sequence. Without WithID or WithIDSource the id is a UUIDv7.
func New(name string, body Body, opts ...Option) *Sequence {
	s := &Sequence{
		name:        name,
		body:        body,
		callPrePost: true,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.id == "" {
		s.id = txn.UUIDv7Source{}.NextID()
	}
	return s
}

// ID returns the sequence id stamped onto every item it sends.
func (s *Sequence) ID() string { return s.id }

// Name returns the sequence name.
func (s *Sequence) Name() string { return s.name }

// State returns the lifecycle state.
func (s *Sequence) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sequencer returns the bound sequencer, or nil for a virtual sequence.
func (s *Sequence) Sequencer() Sequencer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqr
}

// Start binds seqr and runs the sequence to completion on the calling
// goroutine. seqr may be nil for a virtual sequence.
//
// Fails with INVALID_ARBITER if seqr is a typed nil, and with
// PROTOCOL_ERROR if the sequence was already started.
func (s *Sequence) Start(ctx context.Context, seqr Sequencer) error {
	if seqr != nil {
		if v := reflect.ValueOf(seqr); v.Kind() == reflect.Pointer && v.IsNil() {
			return exchange.NewInvalidArbiterError(s.name, seqr)
		}
	}

	s.mu.Lock()
	if s.state != NotStarted {
		state := s.state
		s.mu.Unlock()
		return &exchange.SequenceError{
			Code:     exchange.ErrCodeProtocol,
			Message:  fmt.Sprintf("cannot start a sequence in state %s", state),
			Sequence: s.name,
		}
	}
	s.seqr = seqr
	s.state = Running
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = Done
		s.mu.Unlock()
	}()

	s.logger.Debug("sequence starting", "sequence", s.name, "id", s.id, "virtual", seqr == nil)

	if s.callPrePost && s.preBody != nil {
		if err := s.preBody(ctx, s); err != nil {
			return fmt.Errorf("%s pre_body: %w", s.name, err)
		}
	}
	if s.body != nil {
		if err := s.body(ctx, s); err != nil {
			return err
		}
	}
	if s.callPrePost && s.postBody != nil {
		if err := s.postBody(ctx, s); err != nil {
			return fmt.Errorf("%s post_body: %w", s.name, err)
		}
	}

	s.logger.Debug("sequence done", "sequence", s.name)
	return nil
}

// StartItem stamps item with this sequence's id, queues it on the
// sequencer, and waits until the driver selects it.
func (s *Sequence) StartItem(ctx context.Context, item txn.Transaction) error {
	seqr := s.Sequencer()
	if seqr == nil {
		return exchange.NewNotBoundError("start_item", s.name)
	}
	it, ok := txn.ItemOf(item)
	if !ok {
		return exchange.NewTypeMismatchError("StartItem", item)
	}

	it.SetProducerID(s.id)
	s.mu.Lock()
	s.running = item
	s.mu.Unlock()

	return seqr.StartItem(ctx, item)
}

// FinishItem releases item to the driver and waits until it is done.
func (s *Sequence) FinishItem(ctx context.Context, item txn.Transaction) error {
	seqr := s.Sequencer()
	if seqr == nil {
		return exchange.NewNotBoundError("finish_item", s.name)
	}
	return seqr.FinishItem(ctx, item)
}

// GetResponse returns the response correlated with correlationID. An empty
// correlationID means the most recently started item.
func (s *Sequence) GetResponse(ctx context.Context, correlationID string) (txn.Transaction, error) {
	seqr := s.Sequencer()
	if seqr == nil {
		return nil, exchange.NewNotBoundError("get_response", s.name)
	}

	if correlationID == "" {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running == nil {
			return nil, &exchange.SequenceError{
				Code:     exchange.ErrCodeProtocol,
				Message:  "get_response with no item sent",
				Sequence: s.name,
			}
		}
		correlationID = running.SeqItem().ID()
	}

	return seqr.GetResponse(ctx, correlationID)
}

// Send runs StartItem, fill, FinishItem for one item. fill may be nil.
func (s *Sequence) Send(ctx context.Context, item txn.Transaction, fill func()) error {
	if err := s.StartItem(ctx, item); err != nil {
		return err
	}
	if fill != nil {
		fill()
	}
	return s.FinishItem(ctx, item)
}

// As narrows a response to the caller's concrete transaction type.
//
//	rsp, err := sequence.As[*AluRsp](s.GetResponse(ctx, ""))
func As[T txn.Transaction](rsp txn.Transaction, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	out, ok := rsp.(T)
	if !ok {
		return zero, exchange.NewTypeMismatchError(fmt.Sprintf("As[%T]", zero), rsp)
	}
	return out, nil
}
