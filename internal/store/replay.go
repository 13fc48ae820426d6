package store

import (
	"context"
	"fmt"
	"slices"
)

// GetLastSeq returns the highest event seq across all runs, or 0 for an
// empty store. Seed the evaluator clock with it (engine.NewClockAt) to keep
// seq numbers unique across runs.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(last_seq), 0) FROM runs`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// Divergence is a set of successful runs of one document over identical
// inputs that did not produce identical outputs. Evaluation is
// deterministic, so any divergence points at a nondeterministic function
// or a changed engine.
type Divergence struct {
	DocumentHash  string
	InputsHash    string
	OutputsHashes []string // distinct, sorted
	RunIDs        []string // sorted
}

// FindDivergentRuns returns every divergence in the store, ordered by
// document hash and inputs hash.
func (s *Store) FindDivergentRuns(ctx context.Context) ([]Divergence, error) {
	// Single query over the divergent groups (avoids N+1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.document_hash, r.inputs_hash, r.run_id, r.outputs_hash
		FROM runs r
		JOIN (
			SELECT document_hash, inputs_hash
			FROM runs
			WHERE status = 'ok'
			GROUP BY document_hash, inputs_hash
			HAVING COUNT(DISTINCT outputs_hash) > 1
		) g ON r.document_hash = g.document_hash AND r.inputs_hash = g.inputs_hash
		WHERE r.status = 'ok'
		ORDER BY r.document_hash COLLATE BINARY ASC, r.inputs_hash COLLATE BINARY ASC, r.run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query divergent runs: %w", err)
	}
	defer rows.Close()

	out := []Divergence{}
	for rows.Next() {
		var doc, inputs, runID, outputs string
		if err := rows.Scan(&doc, &inputs, &runID, &outputs); err != nil {
			return nil, fmt.Errorf("scan divergent run: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].DocumentHash != doc || out[n-1].InputsHash != inputs {
			out = append(out, Divergence{DocumentHash: doc, InputsHash: inputs})
		}
		d := &out[len(out)-1]
		d.RunIDs = append(d.RunIDs, runID)
		if !slices.Contains(d.OutputsHashes, outputs) {
			d.OutputsHashes = append(d.OutputsHashes, outputs)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate divergent runs: %w", err)
	}
	for i := range out {
		slices.Sort(out[i].OutputsHashes)
	}
	return out, nil
}

// NodeSummary aggregates the events of one node within a run.
type NodeSummary struct {
	NodeID    int64
	NodeName  string
	Scheduled int
	Executed  int
	FirstSeq  int64
	LastSeq   int64
}

// NodeTimeline summarizes a run per node, ordered by each node's first
// event. Nodes the evaluator never reached do not appear.
func (s *Store) NodeTimeline(ctx context.Context, runID string) ([]NodeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, node_name,
		       SUM(CASE WHEN kind = 'scheduled' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN kind = 'executed' THEN 1 ELSE 0 END),
		       MIN(seq), MAX(seq)
		FROM node_events
		WHERE run_id = ?
		GROUP BY node_id, node_name
		ORDER BY MIN(seq) ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query node timeline: %w", err)
	}
	defer rows.Close()

	out := []NodeSummary{}
	for rows.Next() {
		var n NodeSummary
		if err := rows.Scan(&n.NodeID, &n.NodeName, &n.Scheduled, &n.Executed, &n.FirstSeq, &n.LastSeq); err != nil {
			return nil, fmt.Errorf("scan node summary: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node timeline: %w", err)
	}
	return out, nil
}
