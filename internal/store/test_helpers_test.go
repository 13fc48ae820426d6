package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/engine"
	"github.com/roach88/mfnet/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a successful run with minimal required fields.
func createTestRun(id, documentHash, outputsHash string) Run {
	return Run{
		ID:            id,
		DocumentName:  "scale",
		DocumentHash:  documentHash,
		InputsHash:    "inputs-1",
		OutputsHash:   outputsHash,
		Status:        StatusOK,
		BatchSize:     3,
		Threads:       1,
		Passes:        []string{},
		Inputs:        ir.IRObject{"x": ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}},
		Outputs:       ir.IRObject{"y": ir.IRArray{ir.IRFloat(2.5), ir.IRFloat(5.5), ir.IRFloat(7.5)}},
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// createTestEvents creates a scheduled/executed/finished triple per node,
// numbered from seq start+1.
func createTestEvents(runID string, start int64, nodes ...string) []NodeEvent {
	var events []NodeEvent
	seq := start
	for i, name := range nodes {
		for _, kind := range []engine.EventKind{engine.EventScheduled, engine.EventExecuted, engine.EventFinished} {
			seq++
			events = append(events, NodeEvent{
				RunID: runID, Seq: seq, Kind: kind, NodeID: int64(i), NodeName: name, Worker: 0,
			})
		}
	}
	return events
}
