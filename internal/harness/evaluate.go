package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/engine"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/mask"
	"github.com/roach88/mfnet/internal/network"
	"github.com/roach88/mfnet/internal/optimize"
	"github.com/roach88/mfnet/internal/parallel"
	"github.com/roach88/mfnet/internal/store"
)

// Evaluation is the outcome of evaluating one document.
type Evaluation struct {
	RunID        string
	DocumentHash string
	InputsHash   string
	OutputsHash  string

	// Outputs holds one array of BatchSize values per graph output.
	Outputs   ir.IRObject
	BatchSize int

	// Network is the optimized network that was evaluated.
	Network  *network.Network
	Passes   []optimize.PassResult
	Executed int

	Placeholders []string
	Warnings     []string
}

// EvalOption configures Evaluate.
type EvalOption func(*evalConfig)

type evalConfig struct {
	inputs    ir.IRObject
	context   map[string]any
	batchSize int
	threads   int
	passes    []string
	mode      mapping.Mode
	logger    *slog.Logger
	observer  engine.Observer
	runIDs    engine.RunIDGenerator
	store     *store.Store
}

// WithInputs sets the graph input values by name.
func WithInputs(inputs ir.IRObject) EvalOption {
	return func(c *evalConfig) { c.inputs = inputs }
}

// WithContextValues sets the values context.value nodes read.
func WithContextValues(values map[string]any) EvalOption {
	return func(c *evalConfig) { c.context = values }
}

// WithBatchSize sets how many indices are evaluated. Default: 1.
func WithBatchSize(n int) EvalOption {
	return func(c *evalConfig) { c.batchSize = n }
}

// WithThreads sets the worker count for the evaluator, the passes and
// data-parallel calls. Zero uses GOMAXPROCS.
func WithThreads(n int) EvalOption {
	return func(c *evalConfig) { c.threads = n }
}

// WithPasses sets the optimization passes by name, as accepted by
// optimize.ParsePasses. Default: none.
func WithPasses(names ...string) EvalOption {
	return func(c *evalConfig) { c.passes = names }
}

// WithMode sets the mapping failure policy.
func WithMode(m mapping.Mode) EvalOption {
	return func(c *evalConfig) { c.mode = m }
}

// WithLogger sets the logger passed to every stage.
func WithLogger(l *slog.Logger) EvalOption {
	return func(c *evalConfig) { c.logger = l }
}

// WithObserver receives every evaluator event.
func WithObserver(o engine.Observer) EvalOption {
	return func(c *evalConfig) { c.observer = o }
}

// WithRunIDGenerator sets how the run id is generated. Default: UUIDv7.
func WithRunIDGenerator(g engine.RunIDGenerator) EvalOption {
	return func(c *evalConfig) { c.runIDs = g }
}

// WithStore records the run and its events in st.
func WithStore(st *store.Store) EvalOption {
	return func(c *evalConfig) { c.store = st }
}

// Optimized is a document mapped into a network and optimized, without
// evaluating it.
type Optimized struct {
	DocumentHash string
	Network      *network.Network
	Passes       []optimize.PassResult
	Placeholders []string
	Warnings     []string

	mapped *mapping.Result
}

// Optimize maps doc into a network with lib and runs the configured passes.
// Only the mode, passes, threads and logger options apply.
func Optimize(ctx context.Context, doc *ir.Document, lib *mapping.Library, opts ...EvalOption) (*Optimized, error) {
	return optimizeDocument(ctx, doc, lib, newEvalConfig(opts))
}

func newEvalConfig(opts []EvalOption) *evalConfig {
	cfg := &evalConfig{
		batchSize: 1,
		logger:    slog.Default(),
		runIDs:    engine.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.inputs == nil {
		cfg.inputs = ir.IRObject{}
	}
	return cfg
}

func optimizeDocument(ctx context.Context, doc *ir.Document, lib *mapping.Library, cfg *evalConfig) (*Optimized, error) {
	passes, err := optimize.ParsePasses(strings.Join(cfg.passes, ","))
	if err != nil {
		return nil, err
	}
	docHash, err := ir.DocumentHash(doc)
	if err != nil {
		return nil, fmt.Errorf("hash document: %w", err)
	}

	res, err := mapping.Insert(doc, lib, mapping.WithMode(cfg.mode), mapping.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}

	optOpts := []optimize.Option{optimize.WithLogger(cfg.logger)}
	if cfg.threads > 0 {
		optOpts = append(optOpts, optimize.WithThreads(cfg.threads))
	}
	passResults, err := optimize.NewPipeline(passes, optOpts...).Run(ctx, res.Builder)
	if err != nil {
		return nil, err
	}
	return &Optimized{
		DocumentHash: docHash,
		Network:      res.Builder.Build(),
		Passes:       passResults,
		Placeholders: res.Placeholders,
		Warnings:     res.Warnings,
		mapped:       res,
	}, nil
}

// Evaluate maps doc into a network with lib, optimizes it and computes
// every graph output.
//
// Every declared graph input needs a value. With a store configured, runs
// that reach the evaluator are recorded whether or not they succeed.
func Evaluate(ctx context.Context, doc *ir.Document, lib *mapping.Library, opts ...EvalOption) (*Evaluation, error) {
	cfg := newEvalConfig(opts)
	if cfg.batchSize < 0 {
		return nil, fmt.Errorf("batch size must be non-negative, got %d", cfg.batchSize)
	}
	inputsHash, err := ir.InputsHash(cfg.inputs)
	if err != nil {
		return nil, fmt.Errorf("hash inputs: %w", err)
	}

	opt, err := optimizeDocument(ctx, doc, lib, cfg)
	if err != nil {
		return nil, err
	}
	res, net := opt.mapped, opt.Network

	m := mask.Range(0, cfg.batchSize)
	execOpts, err := inputValues(doc, lib, res, net, cfg)
	if err != nil {
		return nil, err
	}
	execOpts = append(execOpts, engine.WithFunctionContext(fn.NewContext(cfg.context)))
	if cfg.threads > 0 {
		execOpts = append(execOpts, engine.WithCallOptions(fn.WithThreads(cfg.threads)))
	}

	requested, slots, err := requestedOutputs(doc, res, net)
	if err != nil {
		return nil, err
	}

	var rec *store.Recorder
	engOpts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithRunIDGenerator(cfg.runIDs),
		engine.WithThreads(cfg.threads),
	}
	var observers []engine.Observer
	if cfg.observer != nil {
		observers = append(observers, cfg.observer)
	}
	if cfg.store != nil {
		last, err := cfg.store.GetLastSeq(ctx)
		if err != nil {
			return nil, err
		}
		rec = store.NewRecorder(cfg.store)
		observers = append(observers, rec)
		engOpts = append(engOpts, engine.WithClock(engine.NewClockAt(last)))
	}
	if len(observers) > 0 {
		engOpts = append(engOpts, engine.WithObserver(fanOut(observers)))
	}

	e := engine.New(net, engine.NewNetworkExecutor(net, m, execOpts...), engOpts...)
	results, execErr := e.Execute(ctx, requested)

	ev := &Evaluation{
		RunID:        e.RunID(),
		DocumentHash: opt.DocumentHash,
		InputsHash:   inputsHash,
		Outputs:      ir.IRObject{},
		BatchSize:    cfg.batchSize,
		Network:      net,
		Passes:       opt.Passes,
		Executed:     e.ExecutedNodes(),
		Placeholders: opt.Placeholders,
		Warnings:     opt.Warnings,
	}
	if execErr == nil {
		execErr = collectOutputs(doc, lib, net, requested, slots, results, m, ev)
	}
	for _, r := range results {
		if r != nil {
			r.Release()
		}
	}

	if rec != nil {
		if err := rec.Flush(ctx, runRecord(doc, ev, cfg, execErr)); err != nil {
			return nil, err
		}
	}
	if execErr != nil {
		return nil, fmt.Errorf("evaluate %s: %w", doc.Name, execErr)
	}

	cfg.logger.Debug("document evaluated",
		"document", doc.Name,
		"run_id", ev.RunID,
		"batch_size", ev.BatchSize,
		"executed", ev.Executed,
	)
	return ev, nil
}

// inputValues decodes the value of every graph input.
func inputValues(doc *ir.Document, lib *mapping.Library, res *mapping.Result, net *network.Network, cfg *evalConfig) ([]engine.ExecutorOption, error) {
	declared := make(map[string]bool, len(doc.Inputs))
	var opts []engine.ExecutorOption
	for _, in := range doc.Inputs {
		declared[in.Name] = true
		v, ok := cfg.inputs[in.Name]
		if !ok {
			return nil, fmt.Errorf("input %q: no value", in.Name)
		}
		id, _ := res.GraphInput(in.Name)
		s, _ := net.SocketByID(id)
		buf, err := lib.BufferFromIR(s.DataType(), v, cfg.batchSize)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		opts = append(opts, engine.WithInput(id, buf))
	}
	for name := range cfg.inputs {
		if !declared[name] {
			return nil, fmt.Errorf("input %q: not declared by document %s", name, doc.Name)
		}
	}
	return opts, nil
}

// requestedOutputs returns the distinct sockets feeding the graph outputs
// and, per graph output, its position among them.
func requestedOutputs(doc *ir.Document, res *mapping.Result, net *network.Network) ([]network.SocketID, []int, error) {
	var requested []network.SocketID
	seen := make(map[network.SocketID]int)
	slots := make([]int, len(doc.Outputs))
	for i, out := range doc.Outputs {
		id, _ := res.GraphOutput(out.Name)
		s, _ := net.SocketByID(id)
		origin, ok := s.Origin()
		if !ok {
			return nil, nil, fmt.Errorf("output %q: not linked", out.Name)
		}
		slot, ok := seen[origin.ID()]
		if !ok {
			slot = len(requested)
			seen[origin.ID()] = slot
			requested = append(requested, origin.ID())
		}
		slots[i] = slot
	}
	return requested, slots, nil
}

func collectOutputs(doc *ir.Document, lib *mapping.Library, net *network.Network, requested []network.SocketID,
	slots []int, results []ctype.Buffer, m mask.IndexMask, ev *Evaluation) error {
	for i, out := range doc.Outputs {
		s, _ := net.SocketByID(requested[slots[i]])
		vals, err := lib.BufferToIR(s.DataType(), results[slots[i]], m)
		if err != nil {
			return fmt.Errorf("output %q: %w", out.Name, err)
		}
		ev.Outputs[out.Name] = vals
	}
	hash, err := ir.OutputsHash(ev.Outputs)
	if err != nil {
		return fmt.Errorf("hash outputs: %w", err)
	}
	ev.OutputsHash = hash
	return nil
}

// runRecord describes the evaluation for the store. Threads records the
// effective worker count, so the GOMAXPROCS default is stored resolved.
func runRecord(doc *ir.Document, ev *Evaluation, cfg *evalConfig, execErr error) store.Run {
	threads := cfg.threads
	if threads < 1 {
		threads = parallel.DefaultThreads()
	}
	run := store.Run{
		ID:            ev.RunID,
		DocumentName:  doc.Name,
		DocumentHash:  ev.DocumentHash,
		InputsHash:    ev.InputsHash,
		OutputsHash:   ev.OutputsHash,
		Status:        store.StatusOK,
		BatchSize:     cfg.batchSize,
		Threads:       threads,
		Passes:        cfg.passes,
		Inputs:        cfg.inputs,
		Outputs:       ev.Outputs,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if execErr != nil {
		run.Status = store.StatusError
		run.Error = execErr.Error()
		run.OutputsHash = ""
		run.Outputs = ir.IRObject{}
	}
	return run
}

// fanOut forwards each event to every observer in order.
func fanOut(observers []engine.Observer) engine.Observer {
	if len(observers) == 1 {
		return observers[0]
	}
	return engine.ObserverFunc(func(e engine.Event) {
		for _, o := range observers {
			o.Observe(e)
		}
	})
}
