package regalloc

import (
	"fmt"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// reduce empties the worklists in priority order: simplify, coalesce, freeze,
// then pick a potential spill. Every register ends up on the select stack or
// coalesced into another one.
func (a *allocator) reduce() {
	for {
		switch {
		case a.nodes.len(nodeSimplify) > 0:
			a.simplify()
		case a.moves.len(moveWorklist) > 0:
			a.coalesce()
		case a.nodes.len(nodeFreeze) > 0:
			a.freeze()
		case a.nodes.len(nodeSpill) > 0:
			a.selectSpill()
		default:
			return
		}
	}
}

// adjacent returns the neighbours of n still in the graph
func (a *allocator) adjacent(n asm.RegID) []asm.RegID {
	var ns []asm.RegID
	for _, t := range a.graph.Adj(n) {
		if l := a.nodes.in(t); l == nodeStack || l == nodeCoalesced {
			continue
		}
		ns = append(ns, asm.RegID(t))
	}
	return ns
}

// find returns the representative a register was coalesced into
func (a *allocator) find(n asm.RegID) asm.RegID {
	root := n
	for a.alias[root] != root {
		root = a.alias[root]
	}
	for a.alias[n] != root {
		n, a.alias[n] = a.alias[n], root
	}
	return root
}

func (a *allocator) simplify() {
	n := asm.RegID(a.nodes.pop(nodeSimplify))
	a.nodes.add(int(n), nodeStack)
	for _, m := range a.adjacent(n) {
		a.decrementDegree(m)
	}
}

// decrementDegree drops the degree of m. When m falls from K to K-1 it becomes
// colourable, so its own moves and its neighbours' moves get another chance.
func (a *allocator) decrementDegree(m asm.RegID) {
	if a.isPrepainted(m) {
		return
	}
	d := a.graph.degree[m]
	a.graph.degree[m]--
	if d != a.kOf(m) {
		return
	}
	a.enableMoves(m)
	for _, t := range a.adjacent(m) {
		a.enableMoves(t)
	}
	// combine can raise and lower a degree around K without m ever having
	// been a spill candidate
	if a.nodes.in(int(m)) != nodeSpill {
		return
	}
	if a.moveRelated(m) {
		a.nodes.transfer(int(m), nodeSpill, nodeFreeze)
	} else {
		a.nodes.transfer(int(m), nodeSpill, nodeSimplify)
	}
}

func (a *allocator) enableMoves(n asm.RegID) {
	for _, id := range a.nodeMovesOf(n) {
		if a.moves.in(id) == moveActive {
			a.moves.transfer(id, moveActive, moveWorklist)
		}
	}
}

func (a *allocator) coalesce() {
	id := a.moves.pop(moveWorklist)
	m := a.moveList[id]
	u, v := a.find(m.dst), a.find(m.src)
	if a.isPrepainted(v) {
		u, v = v, u
	}

	switch {
	case u == v:
		a.moves.add(id, moveCoalesced)
		a.addWorkList(u)
	case a.isPrepainted(v) || a.graph.HasEdge(u, v):
		a.moves.add(id, moveConstrained)
		a.addWorkList(u)
		a.addWorkList(v)
	case a.canCombine(u, v):
		a.moves.add(id, moveCoalesced)
		a.combine(u, v)
		a.addWorkList(u)
	default:
		a.moves.add(id, moveActive)
	}
}

// canCombine applies George's test when u is prepainted, Briggs's otherwise
func (a *allocator) canCombine(u, v asm.RegID) bool {
	if a.isPrepainted(u) {
		for _, t := range a.adjacent(v) {
			if !a.georgeOK(t, u) {
				return false
			}
		}
		return true
	}
	return a.briggsOK(u, v)
}

func (a *allocator) georgeOK(t, r asm.RegID) bool {
	return a.graph.degree[t] < a.kOf(t) || a.isPrepainted(t) || a.graph.HasEdge(t, r)
}

// briggsOK reports whether the merged node would have fewer than K
// neighbours of significant degree. Prepainted neighbours count as significant.
func (a *allocator) briggsOK(u, v asm.RegID) bool {
	seen := make(map[asm.RegID]bool)
	k := 0
	for _, ns := range [2][]asm.RegID{a.adjacent(u), a.adjacent(v)} {
		for _, t := range ns {
			if seen[t] {
				continue
			}
			seen[t] = true
			if a.isPrepainted(t) || a.graph.degree[t] >= a.kOf(t) {
				k++
			}
		}
	}
	return k < a.kOf(u)
}

// addWorkList promotes u to simplify once it has no moves left and is colourable
func (a *allocator) addWorkList(u asm.RegID) {
	if a.isPrepainted(u) || a.nodes.in(int(u)) != nodeFreeze {
		return
	}
	if !a.moveRelated(u) && a.graph.degree[u] < a.kOf(u) {
		a.nodes.transfer(int(u), nodeFreeze, nodeSimplify)
	}
}

// combine merges v into u
func (a *allocator) combine(u, v asm.RegID) {
	switch l := a.nodes.in(int(v)); l {
	case nodeFreeze, nodeSpill:
		a.nodes.transfer(int(v), l, nodeCoalesced)
	default:
		panic(fmt.Sprintf("regalloc: coalescing %d from list %s", v, listName(nodeListNames[:], l)))
	}
	a.alias[v] = u

	for _, id := range a.nodeMoves[v] {
		if !containsInt(a.nodeMoves[u], id) {
			a.nodeMoves[u] = append(a.nodeMoves[u], id)
		}
	}
	a.enableMoves(v)

	for _, t := range a.adjacent(v) {
		a.graph.AddEdge(t, u)
		a.decrementDegree(t)
	}
	if !a.isPrepainted(u) && a.graph.degree[u] >= a.kOf(u) && a.nodes.in(int(u)) == nodeFreeze {
		a.nodes.transfer(int(u), nodeFreeze, nodeSpill)
	}
}

func (a *allocator) freeze() {
	u := asm.RegID(a.nodes.pop(nodeFreeze))
	a.nodes.add(int(u), nodeSimplify)
	a.freezeMoves(u)
}

// freezeMoves gives up on every move of u. The other endpoint may become
// simplifiable as a result.
func (a *allocator) freezeMoves(u asm.RegID) {
	ru := a.find(u)
	for _, id := range a.nodeMovesOf(u) {
		m := a.moveList[id]
		v := a.find(m.src)
		if v == ru {
			v = a.find(m.dst)
		}
		a.moves.transfer(id, a.moves.in(id), moveFrozen)

		if v == ru || a.isPrepainted(v) || a.moveRelated(v) || a.graph.degree[v] >= a.kOf(v) {
			continue
		}
		a.nodes.transfer(int(v), nodeFreeze, nodeSimplify)
	}
}

// selectSpill picks the cheapest spill candidate and simplifies it
// optimistically; it may still find a colour in the select phase.
// Spill temporaries are only picked when nothing else is left.
func (a *allocator) selectSpill() {
	best := -1
	var bestCost float64
	bestTemp := true
	for _, i := range a.nodes.items(nodeSpill) {
		r := asm.RegID(i)
		c := a.candidate(r)
		cost := a.opts.Heuristic.Cost(c)
		switch {
		case best < 0,
			bestTemp && !c.Temp,
			bestTemp == c.Temp && (cost < bestCost || cost == bestCost && i < best):
			best, bestCost, bestTemp = i, cost, c.Temp
		}
	}
	m := asm.RegID(best)
	a.nodes.transfer(best, nodeSpill, nodeSimplify)
	a.freezeMoves(m)
}

func (a *allocator) candidate(r asm.RegID) SpillCandidate {
	l := a.fn.Regs.Get(r)
	return SpillCandidate{
		Reg:    r,
		Mode:   l.Mode,
		Degree: a.graph.degree[r],
		Uses:   a.uses[r],
		Defs:   a.defs[r],
		Temp:   l.Temp,
	}
}

func listName(names []string, l int) string {
	if l < 0 || l >= len(names) {
		return "none"
	}
	return names[l]
}

func containsInt(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
