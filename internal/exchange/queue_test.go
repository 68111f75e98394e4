package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PutGet(t *testing.T) {
	q := NewQueue[string]("test", 0)

	require.NoError(t, q.TryPut("a"))

	got, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[string]("test", 0)

	for _, v := range []string{"A", "B", "C"} {
		require.NoError(t, q.TryPut(v))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_TryGet_Empty(t *testing.T) {
	q := NewQueue[int]("test", 0)

	_, ok := q.TryGet()
	assert.False(t, ok, "get from empty queue should return false")
}

func TestQueue_Get_BlocksUntilAvailable(t *testing.T) {
	q := NewQueue[string]("test", 0)
	done := make(chan string)

	go func() {
		v, err := q.Get(context.Background())
		if err == nil {
			done <- v
		}
	}()

	// Give goroutine time to block
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.TryPut("late"))

	select {
	case v := <-done:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("get did not unblock")
	}
}

func TestQueue_Get_TwoWaitersBothServed(t *testing.T) {
	q := NewQueue[int]("test", 0)
	got := make(chan int, 2)

	for i := 0; i < 2; i++ {
		go func() {
			v, err := q.Get(context.Background())
			if err == nil {
				got <- v
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, q.TryPut(1))
	require.NoError(t, q.TryPut(2))

	seen := map[int]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-got:
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatal("a waiter was left asleep with items queued")
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, seen)
}

func TestQueue_Bounded_TryPutFails(t *testing.T) {
	q := NewQueue[int]("bounded", 1)

	require.NoError(t, q.TryPut(1))
	err := q.TryPut(2)

	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, q.Len(), "failed put must not lose or add data")
}

func TestQueue_Bounded_PutWaitsForSpace(t *testing.T) {
	q := NewQueue[int]("bounded", 1)
	require.NoError(t, q.TryPut(1))

	done := make(chan error, 1)
	go func() {
		done <- q.Put(context.Background(), 2)
	}()

	select {
	case <-done:
		t.Fatal("put on a full queue must wait")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("put did not unblock after space freed")
	}
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Get_ContextCancel(t *testing.T) {
	q := NewQueue[int]("test", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close_UnblocksGet(t *testing.T) {
	q := NewQueue[int]("test", 0)
	done := make(chan error)

	go func() {
		_, err := q.Get(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("get did not unblock after close")
	}
}

func TestQueue_Close_DrainsRemaining(t *testing.T) {
	q := NewQueue[int]("test", 0)
	require.NoError(t, q.TryPut(7))
	q.Close()

	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.TryPut(8), ErrClosed)
}
