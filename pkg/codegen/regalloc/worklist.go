package regalloc

import "fmt"

// partition keeps each member in at most one of a fixed set of lists.
// Membership tests, moves between lists and removal are O(1); removal
// swaps the last element into the hole, so only the tail keeps its order.
type partition struct {
	name  string
	lists [][]int
	where []int // list index, or -1
	pos   []int // index inside the list
}

const nowhere = -1

func newPartition(name string, members, nlists int) *partition {
	p := &partition{
		name:  name,
		lists: make([][]int, nlists),
		where: make([]int, members),
		pos:   make([]int, members),
	}
	for i := range p.where {
		p.where[i] = nowhere
	}
	return p
}

func (p *partition) in(x int) int {
	return p.where[x]
}

func (p *partition) len(list int) int {
	return len(p.lists[list])
}

func (p *partition) items(list int) []int {
	return p.lists[list]
}

func (p *partition) add(x, list int) {
	if p.where[x] != nowhere {
		panic(fmt.Sprintf("regalloc: %s %d added to list %d while still in list %d", p.name, x, list, p.where[x]))
	}
	p.where[x] = list
	p.pos[x] = len(p.lists[list])
	p.lists[list] = append(p.lists[list], x)
}

// remove takes x out of the list it is expected to be in
func (p *partition) remove(x, list int) {
	if p.where[x] != list {
		panic(fmt.Sprintf("regalloc: %s %d is not in list %d (found in %d)", p.name, x, list, p.where[x]))
	}
	l := p.lists[list]
	i := p.pos[x]
	last := l[len(l)-1]
	l[i] = last
	p.pos[last] = i
	p.lists[list] = l[:len(l)-1]
	p.where[x] = nowhere
}

// pop removes and returns the most recently added member of a list
func (p *partition) pop(list int) int {
	l := p.lists[list]
	x := l[len(l)-1]
	p.remove(x, list)
	return x
}

// transfer moves x from one list to another
func (p *partition) transfer(x, from, to int) {
	p.remove(x, from)
	p.add(x, to)
}

// Node lists. Every register that is not prepainted or retired sits in
// exactly one of simplify, freeze, spill, the select stack or coalesced.
const (
	nodePrecolored = iota
	nodeSimplify
	nodeFreeze
	nodeSpill
	nodeStack // the select stack: only ever popped from the top
	nodeCoalesced
	numNodeLists
)

var nodeListNames = [numNodeLists]string{"precolored", "simplify", "freeze", "spill", "stack", "coalesced"}

// Move lists
const (
	moveWorklist = iota
	moveActive
	moveCoalesced
	moveConstrained
	moveFrozen
	numMoveLists
)

var moveListNames = [numMoveLists]string{"worklist", "active", "coalesced", "constrained", "frozen"}
