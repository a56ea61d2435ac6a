package regalloc

import (
	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// build walks every block backwards from its live-out set, adding an edge
// between each definition and everything live across it. The source of a
// register move does not interfere with its destination; the move is
// recorded as a coalescing candidate instead.
func (a *allocator) build() {
	var u, d []asm.RegID
	var live intsets.Sparse
	var buf []int

	for _, b := range a.fn.Blocks {
		live.Copy(&b.LiveOut)
		for j := len(b.Insns) - 1; j >= 0; j-- {
			in := b.Insns[j]
			u = Uses(a.fn, a.arch, in, u[:0])
			d = Defs(a.fn, a.arch, in, d[:0])
			for _, r := range u {
				a.uses[r]++
			}
			for _, r := range d {
				a.defs[r]++
			}

			if isMove(a.fn, a.arch, in) {
				for _, r := range u {
					live.Remove(int(r))
				}
				a.addMove(in)
			}

			for _, r := range d {
				live.Insert(int(r))
			}
			buf = live.AppendTo(buf[:0])
			for _, r := range d {
				for _, l := range buf {
					a.graph.AddEdge(r, asm.RegID(l))
				}
			}

			for _, r := range d {
				live.Remove(int(r))
			}
			for _, r := range u {
				live.Insert(int(r))
			}
		}
	}

	a.moves = newPartition("move", len(a.moveList), numMoveLists)
	for id := range a.moveList {
		a.moves.add(id, moveWorklist)
	}
}

func (a *allocator) addMove(in *asm.Insn) {
	id := len(a.moveList)
	src, dst := in.Args[0].ID, in.Args[1].ID
	a.moveList = append(a.moveList, move{insn: in, src: src, dst: dst})
	a.nodeMoves[src] = append(a.nodeMoves[src], id)
	if dst != src {
		a.nodeMoves[dst] = append(a.nodeMoves[dst], id)
	}
}

// makeWorklists sorts every register into its initial list. Registers that
// no instruction mentions any more, such as ones already spilled to a slot,
// are left out entirely.
func (a *allocator) makeWorklists() {
	a.nodes = newPartition("node", a.n, numNodeLists)
	for i := 0; i < a.n; i++ {
		r := asm.RegID(i)
		switch {
		case a.isPrepainted(r):
			a.nodes.add(i, nodePrecolored)
		case a.uses[i]+a.defs[i] == 0:
		case a.graph.Degree(r) >= a.kOf(r):
			a.nodes.add(i, nodeSpill)
		case a.moveRelated(r):
			a.nodes.add(i, nodeFreeze)
		default:
			a.nodes.add(i, nodeSimplify)
		}
	}
}

// nodeMovesOf returns the moves of n that may still be coalesced
func (a *allocator) nodeMovesOf(n asm.RegID) []int {
	var ms []int
	for _, id := range a.nodeMoves[n] {
		if l := a.moves.in(id); l == moveWorklist || l == moveActive {
			ms = append(ms, id)
		}
	}
	return ms
}

func (a *allocator) moveRelated(n asm.RegID) bool {
	for _, id := range a.nodeMoves[n] {
		if l := a.moves.in(id); l == moveWorklist || l == moveActive {
			return true
		}
	}
	return false
}
