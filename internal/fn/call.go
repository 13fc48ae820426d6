package fn

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/mfnet/internal/mask"
	"github.com/roach88/mfnet/internal/parallel"
)

// IndexMode is how CallAuto presents one chunk of the mask to Call.
type IndexMode int

const (
	// IndexModeOriginal passes the chunk's indices unchanged.
	IndexModeOriginal IndexMode = iota
	// IndexModeMoved reslices every buffer to the range the chunk covers
	// and offsets the indices to start at zero.
	IndexModeMoved
	// IndexModeCompressed gathers the chunk's elements into dense
	// temporaries, calls over [0, n) and scatters results back.
	IndexModeCompressed
)

func (m IndexMode) String() string {
	switch m {
	case IndexModeOriginal:
		return "original"
	case IndexModeMoved:
		return "moved"
	case IndexModeCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("IndexMode(%d)", int(m))
	}
}

// maxAllocatingGrainSize bounds chunk size for functions that allocate
// per-chunk arrays, keeping peak memory low.
const maxAllocatingGrainSize = 10000

// compressDensity is the chunk density below which gathering is preferred
// over reslicing.
const compressDensity = 0.25

type callConfig struct {
	threads   int
	forceMode *IndexMode
}

// CallOption configures CallAuto.
type CallOption func(*callConfig)

// WithThreads sets the number of goroutines CallAuto may use.
func WithThreads(n int) CallOption {
	return func(c *callConfig) { c.threads = n }
}

// WithIndexMode forces every chunk to use mode. Intended for tests and
// benchmarks.
func WithIndexMode(mode IndexMode) CallOption {
	return func(c *callConfig) { c.forceMode = &mode }
}

// GrainSize derives the chunk size for a mask of n indices.
func GrainSize(hints ExecutionHints, n, threads int) int {
	grain := max(hints.MinGrainSize, 1)
	if hints.UniformExecutionTime && threads > 0 {
		grain = max(grain, n/threads/4)
	}
	if hints.AllocatesArray {
		grain = min(grain, maxAllocatingGrainSize)
	}
	return grain
}

// ChooseIndexMode picks how a chunk is presented to Call.
func ChooseIndexMode(hints ExecutionHints, chunk mask.IndexMask, grain int) IndexMode {
	if !hints.AllocatesArray || chunk.First() < grain {
		return IndexModeOriginal
	}
	if !chunk.IsRange() && chunk.Density() < compressDensity {
		return IndexModeCompressed
	}
	return IndexModeMoved
}

// CallAuto calls f over m, splitting the work across goroutines when the
// mask is large enough and f's signature allows it.
//
// An empty mask returns immediately. Functions with a vector output or
// mutable parameter are always called once over the whole mask, since
// vector buffers cannot be resliced.
func CallAuto(f Function, m mask.IndexMask, params *Params, ctx *Context, opts ...CallOption) {
	if m.IsEmpty() {
		return
	}
	cfg := callConfig{threads: parallel.DefaultThreads()}
	for _, opt := range opts {
		opt(&cfg)
	}
	hints := HintsOf(f)
	grain := GrainSize(hints, m.Size(), cfg.threads)
	sig := f.Signature()

	if m.Size() <= grain || sig.HasVectorOutputOrMutable() || hasVectorInput(sig) {
		recordChunk(sig.Name, "single")
		f.Call(m, params, ctx)
		return
	}

	parallel.For(m.Size(), grain, cfg.threads, func(start, end int) {
		chunk := m.Slice(start, end-start)
		mode := ChooseIndexMode(hints, chunk, grain)
		if cfg.forceMode != nil {
			mode = *cfg.forceMode
		}
		recordChunk(sig.Name, mode.String())
		switch mode {
		case IndexModeOriginal:
			f.Call(chunk, params, ctx)
		case IndexModeMoved:
			offset := chunk.First()
			shifted := m.SliceAndOffset(start, end-start, offset)
			f.Call(shifted, params.sliced(offset, chunk.Span()), ctx)
		case IndexModeCompressed:
			cp := params.compressed(chunk)
			f.Call(mask.Range(0, chunk.Size()), cp.params, ctx)
			cp.scatter()
		}
	})
}

// hasVectorInput reports vector inputs, which cannot be resliced either.
func hasVectorInput(sig *Signature) bool {
	for _, p := range sig.Params {
		if p.Type.Category() == VectorInput {
			return true
		}
	}
	return false
}

var meter = otel.Meter("mfnet.fn")

var (
	chunkCounter metric.Int64Counter
	metricsOnce  sync.Once
	metricsErr   error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		chunkCounter, metricsErr = meter.Int64Counter(
			"mfnet_call_auto_chunks_total",
			metric.WithDescription("Number of Call invocations issued by CallAuto, by index mode"),
		)
	})
	return metricsErr
}

func recordChunk(function, mode string) {
	if err := initMetrics(); err != nil {
		return
	}
	chunkCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("index_mode", mode),
	))
}
