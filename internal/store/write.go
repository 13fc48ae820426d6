package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run and its events in one transaction.
// Returns inserted=false if the run id already exists; the stored run and
// its events are left untouched in that case.
//
// FirstSeq and LastSeq are derived from events. Every event must carry the
// run's id.
func (s *Store) WriteRun(ctx context.Context, run Run, events []NodeEvent) (inserted bool, err error) {
	if run.ID == "" {
		return false, fmt.Errorf("write run: empty run id")
	}
	if run.Status != StatusOK && run.Status != StatusError {
		return false, fmt.Errorf("write run %s: invalid status %q", run.ID, run.Status)
	}
	for _, e := range events {
		if e.RunID != run.ID {
			return false, fmt.Errorf("write run %s: event %d belongs to run %s", run.ID, e.Seq, e.RunID)
		}
	}

	inputsJSON, err := marshalObject("inputs", run.Inputs)
	if err != nil {
		return false, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	outputsJSON, err := marshalObject("outputs", run.Outputs)
	if err != nil {
		return false, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	var first, last int64
	for i, e := range events {
		if i == 0 || e.Seq < first {
			first = e.Seq
		}
		if e.Seq > last {
			last = e.Seq
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run %s: begin tx: %w", run.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, document_name, document_hash, inputs_hash, outputs_hash, status, error,
		 batch_size, threads, passes, inputs, outputs, first_seq, last_seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		run.ID,
		run.DocumentName,
		run.DocumentHash,
		run.InputsHash,
		run.OutputsHash,
		string(run.Status),
		run.Error,
		run.BatchSize,
		run.Threads,
		marshalPasses(run.Passes),
		inputsJSON,
		outputsJSON,
		first,
		last,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run %s: rows affected: %w", run.ID, err)
	}
	if rowsAffected == 0 {
		// Run already stored; leave its events alone.
		return false, tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO node_events (run_id, seq, kind, node_id, node_name, worker)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write run %s: prepare events: %w", run.ID, err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.Seq, string(e.Kind), e.NodeID, e.NodeName, e.Worker); err != nil {
			return false, fmt.Errorf("write run %s: event %d: %w", run.ID, e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return true, nil
}

// DeleteRun removes a run and, through the foreign key cascade, its events.
// Deleting a missing run is not an error.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}
