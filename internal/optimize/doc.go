// Package optimize rewrites network builders in place.
//
// Every pass takes a *network.Builder, mutates it, and reports how many
// nodes it changed. Passes keep node and socket ids of surviving nodes
// stable; removed ids become holes.
//
// Passes:
//   - RemoveDeadNodes drops nodes no boundary node depends on.
//   - FoldConstants evaluates input-free sub-networks once and replaces
//     their outputs with literal nodes.
//   - EliminateCommonSubnetworks merges structurally equal nodes.
//
// Pipeline runs a sequence of passes with one span per pass.
package optimize
