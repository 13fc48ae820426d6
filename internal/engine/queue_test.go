package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/network"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	for _, id := range []network.NodeID{3, 1, 2} {
		require.True(t, q.Enqueue(id))
	}
	assert.Equal(t, 3, q.Len())

	var got []network.NodeID
	for {
		id, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, id)
	}
	assert.Equal(t, []network.NodeID{3, 1, 2}, got)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := newTaskQueue()
	done := make(chan network.NodeID)
	go func() {
		id, ok := q.Dequeue()
		if ok {
			done <- id
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(7)

	select {
	case id := <-done:
		assert.Equal(t, network.NodeID(7), id)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestTaskQueue_CloseWakesAllWaiters(t *testing.T) {
	q := newTaskQueue()
	const waiters = 4

	var wg sync.WaitGroup
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Dequeue()
			results <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(results)

	for ok := range results {
		assert.False(t, ok)
	}
	assert.False(t, q.Enqueue(1), "enqueue after close")
}

func TestTaskQueue_ConcurrentProducersAndConsumers(t *testing.T) {
	pool := newTaskPool()
	const producers, perProducer, consumers = 8, 200, 4

	// Hold one pending slot so the pool cannot close before producers start.
	pool.pending.Add(1)

	var consumed sync.Map
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				id, ok := pool.queue.Dequeue()
				if !ok {
					return
				}
				_, dup := consumed.LoadOrStore(id, true)
				assert.False(t, dup, "node %d dequeued twice", id)
				pool.done()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				pool.push(network.NodeID(p*perProducer + i))
			}
		}(p)
	}
	pwg.Wait()
	pool.done()

	finished := make(chan struct{})
	go func() { cwg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}

	n := 0
	consumed.Range(func(any, any) bool { n++; return true })
	assert.Equal(t, producers*perProducer, n)
	assert.Equal(t, int64(0), pool.pending.Load())
}
