package optimize

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/mfnet/internal/fn"
)

const instrumentationName = "mfnet.optimize"

type config struct {
	logger       *slog.Logger
	threads      int
	seed         uint64
	seeded       bool
	functionHash func(fn.Function) uint64
	provider     trace.TracerProvider
}

// Option configures a pass or a Pipeline.
type Option func(*config)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithThreads sets the worker count used when FoldConstants evaluates
// constant sub-networks.
func WithThreads(n int) Option {
	return func(c *config) { c.threads = n }
}

// WithSeed makes the boundary salts of EliminateCommonSubnetworks
// reproducible.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed, c.seeded = seed, true }
}

// WithFunctionHash replaces fn.HashOf when hashing function nodes.
// Tests use it to force collisions.
func WithFunctionHash(h func(fn.Function) uint64) Option {
	return func(c *config) { c.functionHash = h }
}

// WithTracerProvider sets where pass spans go. Default: the provider of
// the span in the context, else the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.provider = tp }
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:       slog.Default(),
		functionHash: fn.HashOf,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *config) rand() *rand.Rand {
	if c.seeded {
		return rand.New(rand.NewPCG(c.seed, c.seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (c *config) tracer(ctx context.Context) trace.Tracer {
	if c.provider != nil {
		return c.provider.Tracer(instrumentationName)
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.TracerProvider().Tracer(instrumentationName)
	}
	return otel.GetTracerProvider().Tracer(instrumentationName)
}
