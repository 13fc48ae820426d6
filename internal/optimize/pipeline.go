package optimize

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/mfnet/internal/network"
)

// Pass is a named rewrite of a builder.
type Pass struct {
	Name string
	Run  func(ctx context.Context, b *network.Builder, opts ...Option) (int, error)
}

// Built-in passes.
var (
	DeadNodes        = Pass{Name: "dead-nodes", Run: RemoveDeadNodes}
	ConstantFolding  = Pass{Name: "constant-folding", Run: FoldConstants}
	CommonSubnetwork = Pass{Name: "cse", Run: EliminateCommonSubnetworks}
)

// DefaultPasses folds constants, merges duplicates, and cleans up after
// both.
func DefaultPasses() []Pass {
	return []Pass{DeadNodes, ConstantFolding, CommonSubnetwork, DeadNodes}
}

// PassByName looks up a built-in pass.
func PassByName(name string) (Pass, bool) {
	for _, p := range []Pass{DeadNodes, ConstantFolding, CommonSubnetwork} {
		if p.Name == name {
			return p, true
		}
	}
	return Pass{}, false
}

// ParsePasses parses a comma-separated pass list. "default" expands to
// DefaultPasses and "none" to an empty list.
func ParsePasses(list string) ([]Pass, error) {
	var passes []Pass
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "", "none":
			continue
		case "default":
			passes = append(passes, DefaultPasses()...)
			continue
		}
		p, ok := PassByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// PassResult reports one pass run.
type PassResult struct {
	Pass        string `json:"pass"`
	Changed     int    `json:"changed"`
	NodesBefore int    `json:"nodes_before"`
	NodesAfter  int    `json:"nodes_after"`
}

// Pipeline runs passes in order.
type Pipeline struct {
	passes []Pass
	opts   []Option
	cfg    *config
}

// NewPipeline creates a pipeline. opts are also passed to every pass.
func NewPipeline(passes []Pass, opts ...Option) *Pipeline {
	return &Pipeline{passes: passes, opts: opts, cfg: newConfig(opts)}
}

// Run applies every pass to b and stops at the first error.
func (p *Pipeline) Run(ctx context.Context, b *network.Builder) ([]PassResult, error) {
	ctx, span := p.cfg.tracer(ctx).Start(ctx, "optimize.Pipeline",
		trace.WithAttributes(attribute.Int("optimize.passes", len(p.passes))))
	defer span.End()

	results := make([]PassResult, 0, len(p.passes))
	for _, pass := range p.passes {
		before := len(b.View().Nodes())
		changed, err := pass.Run(ctx, b, p.opts...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return results, fmt.Errorf("pass %s: %w", pass.Name, err)
		}
		r := PassResult{
			Pass:        pass.Name,
			Changed:     changed,
			NodesBefore: before,
			NodesAfter:  len(b.View().Nodes()),
		}
		results = append(results, r)
		p.cfg.logger.Debug("pass finished",
			"pass", r.Pass,
			"changed", r.Changed,
			"nodes_before", r.NodesBefore,
			"nodes_after", r.NodesAfter,
		)
	}
	return results, nil
}
