package txn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_PulseWakesArmedWaiters(t *testing.T) {
	s := NewSignal("test")

	a := s.Arm()
	b := s.Arm()
	assert.Equal(t, 2, s.Waiting())

	woken := s.Pulse()
	assert.Equal(t, 2, woken)
	assert.Equal(t, 0, s.Waiting(), "pulse must reset the signal")

	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		default:
			t.Fatal("armed waiter was not woken")
		}
	}
}

func TestSignal_LateWaiterMissesPulse(t *testing.T) {
	s := NewSignal("test")

	assert.Equal(t, 0, s.Pulse(), "pulse with no waiters wakes nobody")

	late := s.Arm()
	select {
	case <-late:
		t.Fatal("waiter armed after the pulse must not be woken by it")
	default:
	}

	assert.Equal(t, 1, s.Pulse())
	<-late
	assert.Equal(t, 0, s.Waiting())
}

func TestSignal_WaitBlocksUntilPulse(t *testing.T) {
	s := NewSignal("test")
	done := make(chan error, 1)

	go func() {
		done <- s.Wait(context.Background())
	}()

	require.Eventually(t, func() bool { return s.Waiting() == 1 }, time.Second, time.Millisecond)
	s.Pulse()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after pulse")
	}
}

func TestSignal_AwaitCancelDisarms(t *testing.T) {
	s := NewSignal("test")
	ctx, cancel := context.WithCancel(context.Background())

	armed := s.Arm()
	cancel()

	err := s.Await(ctx, armed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Waiting(), "cancelled waiter must be unregistered")
}

func TestSignal_ConcurrentPulseAndArm(t *testing.T) {
	s := NewSignal("race")
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		armed := s.Arm()
		go func() {
			defer wg.Done()
			_ = s.Await(context.Background(), armed)
		}()
	}

	s.Pulse()

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("not all armed waiters were released")
	}
}
