package regalloc

import (
	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// bitMatrix is a flattened n*n bit matrix. set always writes both
// (u,v) and (v,u), so the relation it stores is symmetric by construction.
type bitMatrix struct {
	n    int
	bits []uint64
}

func newBitMatrix(n int) bitMatrix {
	return bitMatrix{n: n, bits: make([]uint64, (n*n+63)/64)}
}

func (m *bitMatrix) has(u, v int) bool {
	i := u*m.n + v
	return m.bits[i/64]&(1<<(i%64)) != 0
}

func (m *bitMatrix) set(u, v int) {
	i := u*m.n + v
	j := v*m.n + u
	m.bits[i/64] |= 1 << (i % 64)
	m.bits[j/64] |= 1 << (j % 64)
}

// InterferenceGraph is the undirected interference relation over register ids.
// Adjacency lists and degrees are only kept for registers that can be coloured;
// prepainted registers appear in the matrix and in their neighbours' lists.
type InterferenceGraph struct {
	matrix     bitMatrix
	adj        []intsets.Sparse
	degree     []int
	prepainted *intsets.Sparse
	edges      int
}

func newInterferenceGraph(n int, prepainted *intsets.Sparse) *InterferenceGraph {
	return &InterferenceGraph{
		matrix:     newBitMatrix(n),
		adj:        make([]intsets.Sparse, n),
		degree:     make([]int, n),
		prepainted: prepainted,
	}
}

// Len returns the number of nodes
func (g *InterferenceGraph) Len() int {
	return g.matrix.n
}

// HasEdge reports whether u and v interfere
func (g *InterferenceGraph) HasEdge(u, v asm.RegID) bool {
	return g.matrix.has(int(u), int(v))
}

// AddEdge records that u and v interfere. Self edges and duplicates are ignored.
func (g *InterferenceGraph) AddEdge(u, v asm.RegID) {
	if u == v || g.HasEdge(u, v) {
		return
	}
	g.matrix.set(int(u), int(v))
	g.edges++
	if !g.prepainted.Has(int(u)) {
		g.adj[u].Insert(int(v))
		g.degree[u]++
	}
	if !g.prepainted.Has(int(v)) {
		g.adj[v].Insert(int(u))
		g.degree[v]++
	}
}

// Degree returns the current degree of a node that is not prepainted
func (g *InterferenceGraph) Degree(n asm.RegID) int {
	return g.degree[n]
}

// Adj returns the full adjacency list of n in ascending order
func (g *InterferenceGraph) Adj(n asm.RegID) []int {
	return g.adj[n].AppendTo(nil)
}

// NumEdges counts distinct edges
func (g *InterferenceGraph) NumEdges() int {
	return g.edges
}

// Edges calls f once for each edge with u < v, in ascending order
func (g *InterferenceGraph) Edges(f func(u, v asm.RegID)) {
	n := g.Len()
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if g.matrix.has(u, v) {
				f(asm.RegID(u), asm.RegID(v))
			}
		}
	}
}
