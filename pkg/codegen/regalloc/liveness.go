package regalloc

import (
	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// tracked reports whether a register takes part in liveness and interference.
// The stack and frame pointers never do.
func tracked(fn *asm.Func, l *asm.Loc) bool {
	return l.IsReg() && !fn.Regs.IsFixed(l)
}

// Uses appends the registers read by an instruction: the operand positions of
// the opcode's use template, its implicit registers, and every register that
// takes part in an address computation. Duplicates are possible.
func Uses(fn *asm.Func, t *arch.Table, in *asm.Insn, u []asm.RegID) []asm.RegID {
	info := t.Info(in.Op)
	for _, i := range info.Use.Args {
		if a := in.Args[i]; tracked(fn, a) {
			u = append(u, a.ID)
		}
	}
	for _, r := range info.Use.Regs {
		u = append(u, fn.Regs.Phys(r).ID)
	}
	for _, a := range in.Args {
		if !a.IsMem() {
			continue
		}
		if a.Base != nil && tracked(fn, a.Base) {
			u = append(u, a.Base.ID)
		}
		if a.Index != nil && tracked(fn, a.Index) {
			u = append(u, a.Index.ID)
		}
	}
	return u
}

// Defs appends the registers written by an instruction, including the
// implicit ones the operands don't show.
func Defs(fn *asm.Func, t *arch.Table, in *asm.Insn, d []asm.RegID) []asm.RegID {
	info := t.Info(in.Op)
	for _, i := range info.Def.Args {
		if a := in.Args[i]; tracked(fn, a) {
			d = append(d, a.ID)
		}
	}
	for _, r := range info.Def.Regs {
		d = append(d, fn.Regs.Phys(r).ID)
	}
	return d
}

// isMove reports whether the instruction copies one tracked register to another
func isMove(fn *asm.Func, t *arch.Table, in *asm.Insn) bool {
	if !t.Info(in.Op).Move || len(in.Args) != 2 {
		return false
	}
	return tracked(fn, in.Args[0]) && tracked(fn, in.Args[1])
}

// blockUseDef computes the upward exposed uses and the defs of a block
func blockUseDef(fn *asm.Func, t *arch.Table, b *asm.Block) {
	var u, d []asm.RegID
	b.Use.Clear()
	b.Def.Clear()
	for _, in := range b.Insns {
		u = Uses(fn, t, in, u[:0])
		d = Defs(fn, t, in, d[:0])
		for _, r := range u {
			if !b.Def.Has(int(r)) {
				b.Use.Insert(int(r))
			}
		}
		for _, r := range d {
			b.Def.Insert(int(r))
		}
	}
}

// Liveness computes use/def summaries for every block and solves
//
//	liveout[b] = U livein[s] for s in succ(b)
//	livein[b]  = use[b] U (liveout[b] \ def[b])
//
// to a fixpoint. It returns the number of passes it took.
func Liveness(fn *asm.Func, t *arch.Table) int {
	for _, b := range fn.Blocks {
		blockUseDef(fn, t, b)
		b.LiveIn.Clear()
		b.LiveOut.Clear()
	}

	var out, in intsets.Sparse
	passes := 0
	for changed := true; changed; {
		changed = false
		passes++
		// Backward problem: visiting blocks last to first converges faster
		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			b := fn.Blocks[i]

			out.Clear()
			for _, s := range b.Succ.AppendTo(nil) {
				out.UnionWith(&fn.Blocks[s].LiveIn)
			}
			in.Difference(&out, &b.Def)
			in.UnionWith(&b.Use)

			if !out.Equals(&b.LiveOut) || !in.Equals(&b.LiveIn) {
				changed = true
				b.LiveOut.Copy(&out)
				b.LiveIn.Copy(&in)
			}
		}
	}
	return passes
}
