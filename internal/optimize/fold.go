package optimize

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/engine"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/mask"
	"github.com/roach88/mfnet/internal/network"
)

// FoldConstants replaces constant outputs that feed non-constant nodes
// with literal nodes.
//
// A node is non-constant when it is a dummy, has an unlinked input, calls
// a context-dependent function, or depends on such a node. Outputs of
// constant nodes without inputs are left alone; they are literals already.
// The original constant nodes lose their consumers and are left for
// RemoveDeadNodes.
func FoldConstants(ctx context.Context, b *network.Builder, opts ...Option) (int, error) {
	cfg := newConfig(opts)
	ctx, span := cfg.tracer(ctx).Start(ctx, "optimize.FoldConstants")
	defer span.End()

	net := b.View()
	nonConstant := net.MaskNodesToTheRight(variableRoots(net))

	var folds []network.Socket
	for _, n := range net.FunctionNodes() {
		if nonConstant[n.ID()] || n.InputCount() == 0 {
			continue
		}
		for _, out := range n.Outputs() {
			for _, t := range out.Targets() {
				if nonConstant[t.Node().ID()] {
					folds = append(folds, out)
					break
				}
			}
		}
	}
	if len(folds) == 0 {
		cfg.logger.Debug("no constants to fold")
		return 0, nil
	}

	// Anchor each folded output so it stays a sink of the evaluated snapshot.
	anchors := make([]network.NodeID, len(folds))
	for i, s := range folds {
		a := b.AddDummy("fold_anchor", []fn.DataType{s.DataType()}, nil)
		b.AddLink(s, a.Input(0))
		anchors[i] = a.ID()
	}
	defer b.Remove(anchors)

	snapshot := b.Snapshot()
	requested := make([]network.SocketID, len(anchors))
	for i, a := range anchors {
		origin, _ := snapshot.Node(a).Input(0).Origin()
		requested[i] = origin.ID()
	}
	exec := engine.NewNetworkExecutor(snapshot, mask.Range(0, 1))
	ev := engine.New(snapshot, exec,
		engine.WithThreads(cfg.threads),
		engine.WithLogger(cfg.logger),
	)
	values, err := ev.Execute(ctx, requested)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("fold constants: %w", err)
	}

	for i, s := range folds {
		literal := b.AddFunction(literalFor(s.DataType(), values[i]))
		b.Relink(s, literal.Output(0))
		cfg.logger.Debug("folded constant",
			"node", s.Node().Name(),
			"socket", s.Name(),
			"literal", literal.Name(),
		)
	}

	span.SetAttributes(attribute.Int("optimize.folded", len(folds)))
	return len(folds), nil
}

// variableRoots returns the nodes whose outputs can differ between
// evaluations of the same network.
func variableRoots(net *network.Network) []network.NodeID {
	var roots []network.NodeID
	for _, n := range net.Nodes() {
		if n.IsDummy() || hasUnlinkedInput(n) || n.Function().Signature().DependsOnContext {
			roots = append(roots, n.ID())
		}
	}
	return roots
}

func hasUnlinkedInput(n network.Node) bool {
	for _, in := range n.Inputs() {
		if _, ok := in.Origin(); !ok {
			return true
		}
	}
	return false
}

// literalFor wraps a value computed over a one-element mask in a constant
// function. It takes ownership of v.
func literalFor(dt fn.DataType, v ctype.Buffer) fn.Function {
	if dt.IsSingle() {
		switch v := v.(type) {
		case *ctype.SingleValue:
			return fn.NewGenericConstant(v)
		case *ctype.Array:
			single := ctype.SingleFromPtr(v.Type(), v.Ptr(0))
			v.Release()
			return fn.NewGenericConstant(single)
		}
	} else {
		switch v := v.(type) {
		case *ctype.Array:
			return fn.NewGenericConstantArray(v)
		case *ctype.VectorArray:
			vector := v.Get(0)
			arr := ctype.NewArrayUninitialized(v.Type(), vector.Len())
			if vector.Len() > 0 {
				v.Type().CopyToUninitializedIndices(vector.Data(), arr.Data(), mask.Range(0, vector.Len()))
			}
			v.Release()
			return fn.NewGenericConstantArray(arr)
		}
	}
	panic(fmt.Sprintf("optimize: cannot fold %T into a %s literal", v, dt))
}
