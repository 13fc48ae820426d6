package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/mfnet/internal/engine"
)

func TestEventLog_CountAndExecuted(t *testing.T) {
	log := NewEventLog()
	log.Observe(engine.Event{Seq: 3, Kind: engine.EventExecuted, NodeName: "b"})
	log.Observe(engine.Event{Seq: 1, Kind: engine.EventScheduled, NodeName: "a"})
	log.Observe(engine.Event{Seq: 2, Kind: engine.EventExecuted, NodeName: "a"})
	log.Observe(engine.Event{Seq: 4, Kind: engine.EventExecuted, NodeName: "a"})

	assert.Equal(t, 2, log.Count(engine.EventExecuted, "a"))
	assert.Equal(t, 1, log.Count(engine.EventScheduled, "a"))
	assert.Zero(t, log.Count(engine.EventFinished, "a"))
	assert.Equal(t, []string{"a", "b", "a"}, log.Executed())
}

func TestEventLog_Reset(t *testing.T) {
	log := NewEventLog()
	log.Observe(engine.Event{Seq: 1, Kind: engine.EventExecuted, NodeName: "a"})
	log.Reset()

	assert.Empty(t, log.Events())
	assert.Empty(t, log.Executed())
}

func TestEventLog_ThreadSafe(t *testing.T) {
	log := NewEventLog()
	const workers = 50
	const perWorker = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				log.Observe(engine.Event{Seq: int64(w*perWorker + i), Kind: engine.EventExecuted, NodeName: "n"})
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, log.Events(), workers*perWorker)
	assert.Equal(t, workers*perWorker, log.Count(engine.EventExecuted, "n"))
}
