package regalloc

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// VerifyError reports an allocation that is not a valid colouring
type VerifyError struct {
	Func  string
	Block int
	Insn  int
	Msg   string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: block %d, instruction %d: %s", e.Func, e.Block, e.Insn, e.Msg)
}

// Verify recomputes liveness over the allocated code and checks that every
// register mentioned has a colour and that no register is defined while
// another register with the same colour is live. A move's source may share
// its destination's colour.
func Verify(fn *asm.Func, t *arch.Table) error {
	Liveness(fn, t)

	name := func(id asm.RegID) string {
		return asm.FormatLoc(fn.Regs.Get(id), t, 0)
	}
	var u, d []asm.RegID
	var live intsets.Sparse
	var buf []int

	for _, b := range fn.Blocks {
		live.Copy(&b.LiveOut)
		for j := len(b.Insns) - 1; j >= 0; j-- {
			in := b.Insns[j]
			u = Uses(fn, t, in, u[:0])
			d = Defs(fn, t, in, d[:0])

			for _, r := range append(u[:len(u):len(u)], d...) {
				if fn.Regs.Get(r).Colour == arch.RegNone {
					return &VerifyError{Func: fn.Name, Block: b.ID, Insn: j, Msg: name(r) + " has no register"}
				}
			}

			if isMove(fn, t, in) {
				for _, r := range u {
					live.Remove(int(r))
				}
			}
			for _, r := range d {
				live.Insert(int(r))
			}
			buf = live.AppendTo(buf[:0])
			for _, r := range d {
				rc := t.Colour(fn.Regs.Get(r).Colour)
				for _, l := range buf {
					lc := fn.Regs.Get(asm.RegID(l)).Colour
					if asm.RegID(l) == r || lc == arch.RegNone {
						continue
					}
					if t.Colour(lc) == rc {
						return &VerifyError{Func: fn.Name, Block: b.ID, Insn: j,
							Msg: fmt.Sprintf("%s and %s are both live in %s", name(r), name(asm.RegID(l)),
								t.RegName(fn.Regs.Get(r).Colour))}
					}
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
	return nil
}
