package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/seqx/internal/driver"
	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/sequence"
	"github.com/roach88/seqx/internal/sequencer"
	"github.com/roach88/seqx/internal/store"
	"github.com/roach88/seqx/internal/testutil"
	"github.com/roach88/seqx/internal/txn"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	store  *store.Store
	runID  string
	logger *slog.Logger
}

// WithStore records the run into st instead of a private in-memory store.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithRunID sets the run id. Default: a fresh UUIDv7.
func WithRunID(id string) Option {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes scenario against a real sequencer and driver and evaluates
// its assertions.
//
// Execution flow:
//  1. Open the trace store and register the run
//  2. Start the sequencer loop
//  3. Launch one goroutine per sequence (staggered if requested)
//  4. Start the driver
//  5. Wait for every sequence, then stop the sequencer and driver
//  6. Read fetch order and trace back from the store, evaluate assertions
//
// A returned error means the run could not be set up, including a run id
// already present in the store (store.ErrRunExists). Scenario failures,
// including timeouts, are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	runID := cfg.runID
	if runID == "" {
		runID = txn.UUIDv7Source{}.NextID()
	}
	if err := st.BeginRun(ctx, runID, scenario.Name); err != nil {
		return nil, err
	}

	mode, err := driver.ParseResponseMode(scenario.Driver.Respond)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger.With("scenario", scenario.Name, "run_id", runID)
	clock := testutil.NewStepClock()
	gate := newLaunchGate(st.Recorder(runID, clock), scenario.Sequences)

	seqr := sequencer.New(scenario.Name,
		sequencer.WithQueueCapacity(scenario.QueueCapacity),
		sequencer.WithChannelOptions(
			exchange.WithRequestCapacity(scenario.RequestCapacity),
			exchange.WithResponseCapacity(scenario.ResponseCapacity),
		),
		sequencer.WithRecorder(gate),
		sequencer.WithLogger(logger),
	)
	drv := driver.New(seqr.Channel(), respond(seqr.Channel()),
		driver.WithResponseMode(mode),
		driver.WithLogger(logger),
	)

	runCtx, cancel := context.WithTimeout(ctx, scenario.Timeout())
	defer cancel()

	services, sctx := errgroup.WithContext(runCtx)
	services.Go(func() error { return seqr.Run(sctx) })

	driverReady := make(chan struct{})
	services.Go(func() error {
		select {
		case <-driverReady:
		case <-sctx.Done():
			return sctx.Err()
		}
		if err := drv.Run(sctx); err != nil {
			return fmt.Errorf("driver: %w", err)
		}
		return nil
	})

	transcripts := make([]Transcript, len(scenario.Sequences))
	var producers sync.WaitGroup
	for i, spec := range scenario.Sequences {
		tr := &transcripts[i]
		tr.Name = spec.Name
		tr.Sent = []string{}
		tr.Steps = []string{}

		seq := sequence.New(spec.Name, sequenceBody(spec, tr),
			sequence.WithID(spec.Name),
			sequence.WithLogger(logger),
		)
		var partner sequence.Sequencer
		if !spec.Virtual {
			partner = seqr
		}

		done := make(chan struct{})
		producers.Add(1)
		go func() {
			defer producers.Done()
			defer close(done)
			if err := seq.Start(sctx, partner); err != nil {
				tr.fail(err)
			}
		}()

		if scenario.Stagger {
			select {
			case <-gate.firstQueued(spec.Name):
			case <-done:
			case <-sctx.Done():
			}
		}
	}
	close(driverReady)

	producers.Wait()
	seqr.Stop()

	result := NewResult(scenario.Name)
	result.RunID = runID
	result.Sequences = transcripts

	if err := services.Wait(); err != nil {
		result.AddError(fmt.Sprintf("run aborted: %v", err))
	}

	if result.Fetched, err = st.FetchOrder(ctx, runID); err != nil {
		return nil, err
	}
	if result.Trace, err = st.ReadRun(ctx, runID); err != nil {
		return nil, err
	}
	if err := checkTraceComplete(ctx, st, runID, clock.Current(), len(result.Trace)); err != nil {
		result.AddError(err.Error())
	}

	for _, msg := range EvaluateAssertions(result, scenario) {
		result.AddError(msg)
	}

	logger.Info("scenario finished", "pass", result.Pass, "fetched", len(result.Fetched))
	return result, nil
}

// checkTraceComplete fails when trace writes were dropped. Assertions read
// the stored trace, so a gap would judge them against partial data.
func checkTraceComplete(ctx context.Context, st *store.Store, runID string, stamped int64, stored int) error {
	last, err := st.LastSeq(ctx, runID)
	if err != nil {
		return err
	}
	if last != stamped || int64(stored) != stamped {
		return fmt.Errorf("trace incomplete: %d events stamped, %d stored, last seq %d", stamped, stored, last)
	}
	return nil
}

// sequenceBody sends spec's items in order. Item ids are "<name>-0001",
// "<name>-0002", ... so transcripts are stable between runs.
func sequenceBody(spec SequenceSpec, tr *Transcript) sequence.Body {
	return func(ctx context.Context, s *sequence.Sequence) error {
		ids := testutil.NewSequentialIDs(spec.Name)
		mode := spec.responseMode()

		for _, is := range spec.Items {
			req := &request{Item: txn.NewItem(ids, is.Name)}
			if err := s.StartItem(ctx, req); err != nil {
				return err
			}
			tr.Sent = append(tr.Sent, req.ID())
			tr.step("selected %s", req.ID())

			req.A, req.B, req.duplicate = is.A, is.B, is.DuplicateResponse
			if err := s.FinishItem(ctx, req); err != nil {
				return err
			}
			tr.step("done %s", req.ID())

			if mode == ResponsesByID {
				rsp, err := sequence.As[*response](s.GetResponse(ctx, ""))
				if err != nil {
					return err
				}
				tr.addResponse(rsp)
			}
		}

		if mode == ResponsesFIFO {
			for range tr.Sent {
				rsp, err := sequence.As[*response](s.Sequencer().GetResponse(ctx, ""))
				if err != nil {
					return err
				}
				tr.addResponse(rsp)
			}
		}
		return nil
	}
}

// respond answers every request with a+b. For a request marked duplicate
// both responses are stored before the item completes, so the producer
// always finds two under one correlation id.
func respond(port exchange.DriverPort) driver.Handler {
	return func(_ context.Context, t txn.Transaction) (txn.Transaction, error) {
		req, ok := t.(*request)
		if !ok {
			return nil, exchange.NewTypeMismatchError("respond", t)
		}
		if !req.duplicate {
			return newResponse(req, "rsp-"), nil
		}
		for _, prefix := range []string{"dup-", "rsp-"} {
			if err := port.Put(newResponse(req, prefix)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

func newResponse(req *request, prefix string) *response {
	rsp := &response{
		Item:   txn.NewItemWithID(prefix+req.ID(), req.Name()+"-rsp"),
		Result: req.A + req.B,
	}
	rsp.LinkResponse(req)
	return rsp
}

func (t *Transcript) step(format string, args ...any) {
	t.Steps = append(t.Steps, fmt.Sprintf(format, args...))
}

func (t *Transcript) addResponse(rsp *response) {
	link, _ := rsp.Link()
	t.Responses = append(t.Responses, ResponseRecord{
		ID:         rsp.ID(),
		RequestID:  link.ItemID,
		ProducerID: link.ProducerID,
		Result:     rsp.Result,
	})
	t.step("response %s for %s = %d", rsp.ID(), link.ItemID, rsp.Result)
}

func (t *Transcript) fail(err error) {
	t.Error = err.Error()
	t.Code = string(exchange.CodeOf(err))
	switch {
	case t.Code != "":
		t.step("error %s", t.Code)
	case errors.Is(err, context.DeadlineExceeded):
		t.step("error timeout")
	default:
		t.step("error %v", err)
	}
}

// launchGate passes events through to the store and reports when each
// sequence queued its first item.
type launchGate struct {
	next exchange.Recorder

	mu     sync.Mutex
	queued map[string]chan struct{}
}

func newLaunchGate(next exchange.Recorder, seqs []SequenceSpec) *launchGate {
	g := &launchGate{
		next:   next,
		queued: make(map[string]chan struct{}, len(seqs)),
	}
	for _, s := range seqs {
		g.queued[s.Name] = make(chan struct{})
	}
	return g
}

// Record implements exchange.Recorder.
func (g *launchGate) Record(ctx context.Context, ev exchange.Event) error {
	if ev.Kind == exchange.EventQueued {
		g.mu.Lock()
		if ch, ok := g.queued[ev.ProducerID]; ok {
			close(ch)
			delete(g.queued, ev.ProducerID)
		}
		g.mu.Unlock()
	}
	return g.next.Record(ctx, ev)
}

// firstQueued is closed once producer has queued an item.
func (g *launchGate) firstQueued(producer string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ch, ok := g.queued[producer]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}
