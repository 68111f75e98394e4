package sequence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/sequencer"
	"github.com/roach88/seqx/internal/txn"
)

type aluReq struct {
	*txn.Item
	A, B int
}

type aluRsp struct {
	*txn.Item
	Result int
}

type seqIDs struct{ n int }

func (s *seqIDs) NextID() string {
	s.n++
	return "id-" + string(rune('0'+s.n))
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startSequencer(t *testing.T) (*sequencer.Sequencer, context.Context) {
	t.Helper()
	s := sequencer.New("seqr", sequencer.WithLogger(quiet()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		s.Stop()
		cancel()
		<-done
	})
	return s, ctx
}

// serve answers n requests with linked aluRsp values.
func serve(ctx context.Context, port exchange.DriverPort, n int) error {
	for i := 0; i < n; i++ {
		next, err := port.FetchNext(ctx)
		if err != nil {
			return err
		}
		req := next.(*aluReq)
		rsp := &aluRsp{Item: txn.NewItemWithID("rsp-"+req.ID(), "alu-rsp"), Result: req.A + req.B}
		rsp.LinkResponse(req)
		if err := port.MarkDone(rsp); err != nil {
			return err
		}
	}
	return nil
}

func TestSequence_RoundTrip(t *testing.T) {
	seqr, ctx := startSequencer(t)
	drv := make(chan error, 1)
	go func() { drv <- serve(ctx, seqr.Channel(), 1) }()

	var got *aluRsp
	seq := New("alu", func(ctx context.Context, s *Sequence) error {
		req := &aluReq{Item: txn.NewItemWithID("1", "alu-req")}
		if err := s.Send(ctx, req, func() { req.A, req.B = 1, 5 }); err != nil {
			return err
		}
		rsp, err := As[*aluRsp](s.GetResponse(ctx, ""))
		got = rsp
		return err
	}, WithID("seq-A"), WithLogger(quiet()))

	require.NoError(t, seq.Start(ctx, seqr))
	require.NoError(t, <-drv)

	require.NotNil(t, got)
	assert.Equal(t, 6, got.Result)
	link, ok := got.Link()
	require.True(t, ok)
	assert.Equal(t, txn.Link{ProducerID: "seq-A", ItemID: "1"}, link)
	assert.Equal(t, Done, seq.State())
}

func TestSequence_StartItemWithoutStartIsNotBound(t *testing.T) {
	seq := New("orphan", nil, WithLogger(quiet()))
	req := &aluReq{Item: txn.NewItemWithID("1", "req")}

	err := seq.StartItem(context.Background(), req)
	require.Error(t, err)
	assert.True(t, exchange.IsNotBound(err))
	assert.ErrorIs(t, err, exchange.ErrNotBound)
	assert.Empty(t, req.ProducerID(), "a failed StartItem must not stamp the item")
}

func TestSequence_VirtualSequence(t *testing.T) {
	seqr, ctx := startSequencer(t)
	drv := make(chan error, 1)
	go func() { drv <- serve(ctx, seqr.Channel(), 1) }()

	var itemErr error
	child := New("child", func(ctx context.Context, s *Sequence) error {
		return s.Send(ctx, &aluReq{Item: txn.NewItemWithID("c1", "req")}, nil)
	}, WithLogger(quiet()))

	parent := New("top", func(ctx context.Context, s *Sequence) error {
		itemErr = s.StartItem(ctx, &aluReq{Item: txn.NewItemWithID("p1", "req")})
		return child.Start(ctx, seqr)
	}, WithLogger(quiet()))

	require.NoError(t, parent.Start(ctx, nil))
	require.NoError(t, <-drv)

	assert.True(t, exchange.IsNotBound(itemErr))
	assert.Nil(t, parent.Sequencer())
	assert.Equal(t, Done, child.State())
}

func TestSequence_StartRejectsTypedNilSequencer(t *testing.T) {
	var seqr *sequencer.Sequencer
	seq := New("bad", nil, WithLogger(quiet()))

	err := seq.Start(context.Background(), seqr)
	require.Error(t, err)
	assert.Equal(t, exchange.ErrCodeInvalidArbiter, exchange.CodeOf(err))
	assert.Equal(t, NotStarted, seq.State())
}

func TestSequence_StartTwice(t *testing.T) {
	seq := New("once", nil, WithLogger(quiet()))
	require.NoError(t, seq.Start(context.Background(), nil))

	err := seq.Start(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, exchange.IsProtocolError(err))
	assert.Contains(t, err.Error(), "DONE")
}

func TestSequence_GetResponseWithNoItem(t *testing.T) {
	seqr, ctx := startSequencer(t)
	seq := New("empty", func(ctx context.Context, s *Sequence) error {
		_, err := s.GetResponse(ctx, "")
		return err
	}, WithLogger(quiet()))

	err := seq.Start(ctx, seqr)
	require.Error(t, err)
	assert.True(t, exchange.IsProtocolError(err))
}

func TestSequence_PrePostOrder(t *testing.T) {
	var calls []string
	hook := func(name string) Hook {
		return func(context.Context, *Sequence) error {
			calls = append(calls, name)
			return nil
		}
	}
	body := func(context.Context, *Sequence) error {
		calls = append(calls, "body")
		return nil
	}

	seq := New("hooks", body, WithPreBody(hook("pre")), WithPostBody(hook("post")), WithLogger(quiet()))
	require.NoError(t, seq.Start(context.Background(), nil))
	assert.Equal(t, []string{"pre", "body", "post"}, calls)

	calls = nil
	seq = New("nohooks", body, WithPreBody(hook("pre")), WithPostBody(hook("post")), WithoutPrePost(), WithLogger(quiet()))
	require.NoError(t, seq.Start(context.Background(), nil))
	assert.Equal(t, []string{"body"}, calls)
}

func TestSequence_BodyErrorStillEndsDone(t *testing.T) {
	boom := errors.New("boom")
	seq := New("fails", func(context.Context, *Sequence) error { return boom }, WithLogger(quiet()))

	err := seq.Start(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Done, seq.State())
}

func TestSequence_Identity(t *testing.T) {
	named := New("top", nil, WithIDSource(&seqIDs{}))
	other := New("leaf", nil)

	assert.Equal(t, "id-1", named.ID())
	assert.Equal(t, "leaf", other.Name())
	assert.NotEmpty(t, other.ID())
	assert.NotEqual(t, named.ID(), other.ID())
	assert.Equal(t, "NOT_STARTED", other.State().String())
}

func TestAs_TypeMismatch(t *testing.T) {
	req := &aluReq{Item: txn.NewItemWithID("1", "req")}

	_, err := As[*aluRsp](req, nil)
	assert.True(t, exchange.IsTypeMismatch(err))

	boom := errors.New("boom")
	_, err = As[*aluRsp](nil, boom)
	assert.ErrorIs(t, err, boom)
}
