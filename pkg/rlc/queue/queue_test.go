package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

func TestTryPushTryPopBasic(t *testing.T) {
	q := New(2)
	require.NoError(t, q.TryPush([]byte("a")))
	require.NoError(t, q.TryPush([]byte("bb")))

	err := q.TryPush([]byte("c"))
	assert.True(t, errors.Is(err, rlcerr.ErrQueueFull))

	sdu, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "a", string(sdu.Bytes))
	assert.Equal(t, uint64(2), q.BytesPending())
}

func TestFrontBytesDoesNotDequeue(t *testing.T) {
	q := New(4)
	require.NoError(t, q.TryPush([]byte("hello")))
	assert.Equal(t, 5, q.FrontBytes())
	assert.Equal(t, 1, q.Len())
}

func TestResetClearsWithoutClosing(t *testing.T) {
	q := New(4)
	require.NoError(t, q.TryPush([]byte("xyz")))
	q.Reset()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint64(0), q.BytesPending())

	require.NoError(t, q.TryPush([]byte("still usable")))
	assert.Equal(t, 1, q.Len())
}

func TestBlockingPushUnblocksOnPop(t *testing.T) {
	q := New(1)
	require.NoError(t, q.TryPush([]byte("first")))

	done := make(chan struct{})
	go func() {
		require.NoError(t, q.Push([]byte("second")))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push should have blocked while queue is full")
	case <-time.After(30 * time.Millisecond):
	}

	_, ok := q.Pop()
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after pop freed capacity")
	}
}

func TestCloseUnblocksWaiters(t *testing.T) {
	q := New(1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Push([]byte("x"))
		errCh <- q.Push([]byte("y")) // blocks, queue already at capacity 1
	}()
	require.NoError(t, <-errCh)

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not unblock pending push")
	}

	// "x" was queued before Close and is still handed out.
	sdu, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "x", string(sdu.Bytes))

	_, ok = q.Pop()
	assert.False(t, ok, "pop on a closed, empty queue should not block forever")
}

func TestBytesPendingMatchesConcurrentPushPop(t *testing.T) {
	q := New(1000)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.TryPush(make([]byte, 10))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(q.Len()*10), q.BytesPending())

	for q.Len() > 0 {
		_, ok := q.TryPop()
		require.True(t, ok)
	}
	assert.Equal(t, uint64(0), q.BytesPending())
}
