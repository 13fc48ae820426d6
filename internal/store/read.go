package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/engine"
)

const runColumns = `run_id, document_name, document_hash, inputs_hash, outputs_hash, status, error,
	batch_size, threads, passes, inputs, outputs, first_seq, last_seq, engine_version, ir_version`

// ReadRun retrieves a run and its events ordered by seq.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, []NodeEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, nil, fmt.Errorf("read run %s: %w", runID, err)
	}

	events, err := s.ReadNodeEvents(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, events, nil
}

// ReadNodeEvents returns the events of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadNodeEvents(ctx context.Context, runID string) ([]NodeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, node_id, node_name, worker
		FROM node_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query node events: %w", err)
	}
	defer rows.Close()

	events := []NodeEvent{}
	for rows.Next() {
		var e NodeEvent
		var kind string
		if err := rows.Scan(&e.RunID, &e.Seq, &kind, &e.NodeID, &e.NodeName, &e.Worker); err != nil {
			return nil, fmt.Errorf("scan node event: %w", err)
		}
		e.Kind = engine.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node events: %w", err)
	}
	return events, nil
}

// ListOptions filters ListRuns. Zero values match everything.
type ListOptions struct {
	DocumentHash string
	Status       RunStatus
	// Limit caps the number of runs returned; 0 means no limit.
	Limit int
}

// ListRuns returns stored runs, newest first. UUIDv7 run ids sort by start
// time, so ordering by id is ordering by time.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	var where []string
	var args []any
	if opts.DocumentHash != "" {
		where = append(where, "document_hash = ?")
		args = append(args, opts.DocumentHash)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY run_id COLLATE BINARY DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var status, passes, inputs, outputs string
	err := row.Scan(
		&run.ID,
		&run.DocumentName,
		&run.DocumentHash,
		&run.InputsHash,
		&run.OutputsHash,
		&status,
		&run.Error,
		&run.BatchSize,
		&run.Threads,
		&passes,
		&inputs,
		&outputs,
		&run.FirstSeq,
		&run.LastSeq,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Status = RunStatus(status)
	run.Passes = unmarshalPasses(passes)
	if run.Inputs, err = unmarshalObject("inputs", inputs); err != nil {
		return Run{}, err
	}
	if run.Outputs, err = unmarshalObject("outputs", outputs); err != nil {
		return Run{}, err
	}
	return run, nil
}
