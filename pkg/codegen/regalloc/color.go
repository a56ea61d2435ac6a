package regalloc

import (
	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// colour pops the select stack, giving each register the lowest colour none
// of its neighbours' representatives hold. Registers that find none are
// returned as real spills, in the order they were popped. Coalesced registers
// take their representative's colour, translated to their own width.
func (a *allocator) colour() []asm.RegID {
	regs := a.fn.Regs
	t := a.arch
	taken := make([]bool, t.K)
	var spilled []asm.RegID

	for a.nodes.len(nodeStack) > 0 {
		n := asm.RegID(a.nodes.pop(nodeStack))
		l := regs.Get(n)

		for c := range taken {
			taken[c] = false
		}
		for _, w := range a.graph.Adj(n) {
			rep := regs.Get(a.find(asm.RegID(w)))
			if rep.Colour == arch.RegNone {
				continue
			}
			if c := t.Colour(rep.Colour); c < len(taken) {
				taken[c] = true
			}
		}

		l.Colour = arch.RegNone
		for c := range taken {
			if r := t.RegFor(c, l.Mode); !taken[c] && r != arch.RegNone {
				l.Colour = r
				break
			}
		}
		if l.Colour == arch.RegNone {
			spilled = append(spilled, n)
		}
	}

	for _, i := range a.nodes.items(nodeCoalesced) {
		l := regs.Get(asm.RegID(i))
		rep := regs.Get(a.find(asm.RegID(i)))
		if rep.Colour != arch.RegNone {
			l.Colour = t.RegFor(t.Colour(rep.Colour), l.Mode)
		}
	}
	return spilled
}
