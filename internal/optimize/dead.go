package optimize

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/mfnet/internal/network"
)

// RemoveDeadNodes removes every node that no dummy node depends on.
// Nodes are kept whether or not a dummy feeds them, so constant sources
// survive. A builder without dummy nodes is emptied.
func RemoveDeadNodes(ctx context.Context, b *network.Builder, opts ...Option) (int, error) {
	cfg := newConfig(opts)
	_, span := cfg.tracer(ctx).Start(ctx, "optimize.RemoveDeadNodes")
	defer span.End()

	net := b.View()
	live := net.MaskNodesToTheLeft(network.NodeIDs(net.DummyNodes()))

	var dead []network.NodeID
	for _, n := range net.Nodes() {
		if !live[n.ID()] {
			dead = append(dead, n.ID())
		}
	}
	b.Remove(dead)

	span.SetAttributes(attribute.Int("optimize.removed", len(dead)))
	cfg.logger.Debug("dead nodes removed", "count", len(dead))
	return len(dead), nil
}
