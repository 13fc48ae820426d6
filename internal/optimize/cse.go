package optimize

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/network"
)

// ErrCyclic is returned by passes that require an acyclic network.
var ErrCyclic = errors.New("network contains a cycle")

// EliminateCommonSubnetworks merges function nodes that compute the same
// thing: equal functions fed by the same outputs of already merged nodes.
// Consumers of a duplicate are relinked to its representative and the
// duplicate is removed.
//
// Dummy nodes and nodes with unlinked inputs are never merged. Each gets a
// random salt so its consumers hash apart from everything else.
//
// Hash equality only selects candidates; merging requires proven
// structural equality. The network must be acyclic.
func EliminateCommonSubnetworks(ctx context.Context, b *network.Builder, opts ...Option) (int, error) {
	cfg := newConfig(opts)
	_, span := cfg.tracer(ctx).Start(ctx, "optimize.EliminateCommonSubnetworks")
	defer span.End()

	net := b.View()
	if cycles := net.Cycles(); len(cycles) > 0 {
		return 0, fmt.Errorf("eliminate common subnetworks: %w: nodes %v", ErrCyclic, cycles[0])
	}

	order, hashes := hashNodes(net, cfg)

	uf := newUnionFind(net.NodeBound())
	representatives := make(map[uint64][]network.NodeID)
	var duplicates []network.NodeID
	for _, id := range order {
		n := net.Node(id)
		h := hashes[id]
		rep, found := network.NodeID(0), false
		for _, r := range representatives[h] {
			if nodesEqual(net.Node(r), n, uf) {
				rep, found = r, true
				break
			}
		}
		if !found {
			representatives[h] = append(representatives[h], id)
			continue
		}
		uf.union(rep, id)
		for i, out := range n.Outputs() {
			b.Relink(out, net.Node(rep).Output(i))
		}
		duplicates = append(duplicates, id)
		cfg.logger.Debug("merged node", "node", n.Name(), "id", id, "into", rep)
	}
	b.Remove(duplicates)

	span.SetAttributes(attribute.Int("optimize.merged", len(duplicates)))
	return len(duplicates), nil
}

// hashNodes returns mergeable function nodes in dependency order with
// structural hashes for every node.
func hashNodes(net *network.Network, cfg *config) ([]network.NodeID, []uint64) {
	rng := cfg.rand()
	hashes := make([]uint64, net.NodeBound())
	hashed := make([]bool, net.NodeBound())

	var pending []network.Node
	for _, n := range net.Nodes() {
		if n.IsDummy() || hasUnlinkedInput(n) {
			hashes[n.ID()] = uint64(rng.Uint32())
			hashed[n.ID()] = true
			continue
		}
		pending = append(pending, n)
	}

	// Work-list to a fixed point. Acyclic input guarantees progress.
	var order []network.NodeID
	for len(pending) > 0 {
		next := make([]network.Node, 0, len(pending))
		for _, n := range pending {
			h, ok := structuralHash(n, hashes, hashed, cfg.functionHash)
			if !ok {
				next = append(next, n)
				continue
			}
			hashes[n.ID()] = h
			hashed[n.ID()] = true
			order = append(order, n.ID())
		}
		if len(next) == len(pending) {
			panic("optimize: structural hashing made no progress on an acyclic network")
		}
		pending = next
	}
	return order, hashes
}

func structuralHash(n network.Node, hashes []uint64, hashed []bool, functionHash func(fn.Function) uint64) (uint64, bool) {
	h := functionHash(n.Function())
	for _, in := range n.Inputs() {
		origin, _ := in.Origin()
		from := origin.Node().ID()
		if !hashed[from] {
			return 0, false
		}
		h = combineHash(h, combineHash(hashes[from], uint64(origin.Index())))
	}
	return h, true
}

func combineHash(a, b uint64) uint64 {
	return a ^ (b + 0x9e3779b97f4a7c15 + (a << 6) + (a >> 2))
}

func nodesEqual(a, b network.Node, uf *unionFind) bool {
	if !fn.Equal(a.Function(), b.Function()) {
		return false
	}
	if !slices.Equal(a.InputParamIndices(), b.InputParamIndices()) ||
		!slices.Equal(a.OutputParamIndices(), b.OutputParamIndices()) {
		return false
	}
	for i := range a.InputCount() {
		oa, _ := a.Input(i).Origin()
		ob, _ := b.Input(i).Origin()
		if oa.Index() != ob.Index() || uf.find(oa.Node().ID()) != uf.find(ob.Node().ID()) {
			return false
		}
	}
	return true
}

// unionFind tracks which nodes were proven equal.
type unionFind struct {
	parent []network.NodeID
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]network.NodeID, n)}
	for i := range uf.parent {
		uf.parent[i] = network.NodeID(i)
	}
	return uf
}

func (uf *unionFind) find(id network.NodeID) network.NodeID {
	for uf.parent[id] != id {
		uf.parent[id] = uf.parent[uf.parent[id]]
		id = uf.parent[id]
	}
	return id
}

// union merges other's set into keep's.
func (uf *unionFind) union(keep, other network.NodeID) {
	uf.parent[uf.find(other)] = uf.find(keep)
}
