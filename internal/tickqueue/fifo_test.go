package tickqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azanium/tickstream/internal/trade"
)

func TestFIFOOrderIsPreserved(t *testing.T) {
	q := New(8)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(trade.Trade{Symbol: "AAPL", Price: float64(i)}))
	}

	for i := 0; i < 5; i++ {
		got, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, float64(i), got.Price)
	}
}

func TestFIFOBackpressureBlocksUntilRoom(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Enqueue(trade.Trade{Price: 1}))
	require.NoError(t, q.Enqueue(trade.Trade{Price: 2}))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(trade.Trade{Price: 3})
	}()

	select {
	case <-done:
		t.Fatal("enqueue on a full queue returned before room was made")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Dequeue()
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after a dequeue made room")
	}
}

func TestFIFOStopWakesBlockedDequeue(t *testing.T) {
	q := New(4)

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped{})
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake on Stop")
	}
}

func TestFIFOStopWakesBlockedEnqueue(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Enqueue(trade.Trade{Price: 1}))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(trade.Trade{Price: 2})
	}()

	time.Sleep(20 * time.Millisecond)
	q.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped{})
	case <-time.After(time.Second):
		t.Fatal("enqueue did not wake on Stop")
	}
}

func TestFIFOStopIsIdempotent(t *testing.T) {
	q := New(4)
	q.Stop()
	q.Stop()

	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrStopped{})
}

func TestFIFOBackpressureStall501Trades(t *testing.T) {
	const capacity = 500
	q := New(capacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < capacity+1; i++ {
			require.NoError(t, q.Enqueue(trade.Trade{Price: float64(i)}))
		}
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, capacity, q.Len(), "producer should stall once the queue is full")

	for i := 0; i < capacity+1; i++ {
		got, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, float64(i), got.Price)
	}

	wg.Wait()
}
