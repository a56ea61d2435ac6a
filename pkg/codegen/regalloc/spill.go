package regalloc

import (
	"fmt"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// SlotSize is the size of every spill slot
const SlotSize = 8

// RewriteSpills gives each spilled register a stack slot below the frame
// register and rewrites every instruction that mentions it: reads go through
// a load into a fresh temporary before the instruction, writes through a
// store after it. An instruction that both reads and writes the register
// shares one temporary. The spilled register no longer appears in the code.
func RewriteSpills(fn *asm.Func, t *arch.Table, spilled []asm.RegID) error {
	regs := fn.Regs
	slots := make(map[asm.RegID]*asm.Loc, len(spilled))
	for _, id := range spilled {
		l := regs.Get(id)
		if l.Temp {
			return fmt.Errorf("%w: %%v%d", ErrUnallocatable, id)
		}
		if l.IsPhysical() {
			panic(fmt.Sprintf("regalloc: spilling physical register %s", t.RegName(l.Colour)))
		}
		fn.FrameSize += SlotSize
		l.Slot = asm.Mem(l.Mode, -fn.FrameSize, regs.Phys(t.FrameReg), nil, 1)
		slots[id] = l.Slot
	}

	for _, b := range fn.Blocks {
		out := make([]*asm.Insn, 0, len(b.Insns))
		for _, in := range b.Insns {
			r := spillRewrite{fn: fn, t: t, slots: slots}
			r.rewrite(in)
			out = append(out, r.before...)
			out = append(out, in)
			out = append(out, r.after...)
		}
		b.Insns = out
	}
	return nil
}

type spillRewrite struct {
	fn    *asm.Func
	t     *arch.Table
	slots map[asm.RegID]*asm.Loc

	temps         map[asm.RegID]*asm.Loc
	before, after []*asm.Insn
}

func (r *spillRewrite) temp(l *asm.Loc) *asm.Loc {
	if tmp, ok := r.temps[l.ID]; ok {
		return tmp
	}
	if r.temps == nil {
		r.temps = make(map[asm.RegID]*asm.Loc)
	}
	tmp := r.fn.Regs.NewVirt(l.Mode)
	tmp.Temp = true
	r.temps[l.ID] = tmp
	return tmp
}

func (r *spillRewrite) load(l *asm.Loc) {
	if _, ok := r.temps[l.ID]; ok {
		return
	}
	tmp := r.temp(l)
	r.before = append(r.before, asm.NewInsn(r.t.MoveOp, l.Mode, r.slots[l.ID], tmp))
}

func (r *spillRewrite) isSpilled(l *asm.Loc) bool {
	if !l.IsReg() {
		return false
	}
	_, ok := r.slots[l.ID]
	return ok
}

func (r *spillRewrite) rewrite(in *asm.Insn) {
	info := r.t.Info(in.Op)

	// loads first, so a read-write operand keeps the temp it was loaded into
	for _, i := range info.Use.Args {
		if a := in.Args[i]; r.isSpilled(a) {
			r.load(a)
		}
	}
	for i, a := range in.Args {
		if !a.IsMem() {
			continue
		}
		base, index := a.Base, a.Index
		if r.isSpilled(base) {
			r.load(base)
			base = r.temps[base.ID]
		}
		if r.isSpilled(index) {
			r.load(index)
			index = r.temps[index.ID]
		}
		if base != a.Base || index != a.Index {
			m := *a
			m.Base, m.Index = base, index
			in.Args[i] = &m
		}
	}

	stored := make(map[asm.RegID]bool)
	for _, i := range info.Def.Args {
		a := in.Args[i]
		if !r.isSpilled(a) || stored[a.ID] {
			continue
		}
		stored[a.ID] = true
		tmp := r.temp(a)
		r.after = append(r.after, asm.NewInsn(r.t.MoveOp, a.Mode, tmp, r.slots[a.ID]))
	}

	for i, a := range in.Args {
		if r.isSpilled(a) {
			in.Args[i] = r.temp(a)
		}
	}
}
