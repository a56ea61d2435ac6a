// Package asm is the machine-level representation the register allocator works on.
//
// Design: functions are CFGs of basic blocks holding target instructions whose
// operands are Locs. Every register, virtual or physical, has a unique RegID
// within its function and is reachable through the function's RegTable.
package asm

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
)

// RegID indexes a register in its function's RegTable
type RegID int

// LocKind discriminates operand shapes
type LocKind int

const (
	LocReg LocKind = iota
	LocMem
	LocImm
	LocLabel
)

// Loc is an operand: a register, a memory reference, an immediate or a label
type Loc struct {
	Kind LocKind
	Mode arch.Mode

	// Registers. Colour is RegNone until the allocator assigns one;
	// physical registers are born with their own colour.
	ID     RegID
	Colour arch.PhysReg
	Slot   *Loc // stack slot of a spilled register
	Temp   bool // spill temporary, never spilled again

	physical bool

	// Memory: Disp(Base, Index, Scale) or Sym(Base)
	Base  *Loc
	Index *Loc
	Scale int
	Disp  int64
	Sym   string

	Imm   int64
	Label string
}

// IsReg reports whether the operand is a register
func (l *Loc) IsReg() bool {
	return l != nil && l.Kind == LocReg
}

// IsPhysical reports whether the register is a machine register
func (l *Loc) IsPhysical() bool {
	return l != nil && l.physical
}

// IsMem reports whether the operand is a memory reference
func (l *Loc) IsMem() bool {
	return l != nil && l.Kind == LocMem
}

// Imm creates an immediate operand
func Imm(v int64) *Loc {
	return &Loc{Kind: LocImm, Imm: v}
}

// Label creates a label operand
func Label(name string) *Loc {
	return &Loc{Kind: LocLabel, Label: name}
}

// Mem creates a memory operand
func Mem(m arch.Mode, disp int64, base, index *Loc, scale int) *Loc {
	return &Loc{Kind: LocMem, Mode: m, Disp: disp, Base: base, Index: index, Scale: scale}
}

// Insn is one machine instruction
type Insn struct {
	Op   arch.Op
	Mode arch.Mode // width suffix, ModeNone for unsized mnemonics
	Args []*Loc
}

// NewInsn creates an instruction
func NewInsn(op arch.Op, m arch.Mode, args ...*Loc) *Insn {
	return &Insn{Op: op, Mode: m, Args: args}
}

// Block is a basic block. Set fields hold block ids (Pred, Succ)
// or register ids (Use, Def, LiveIn, LiveOut).
type Block struct {
	ID     int
	Labels []string
	Insns  []*Insn

	Pred intsets.Sparse
	Succ intsets.Sparse

	Use     intsets.Sparse
	Def     intsets.Sparse
	LiveIn  intsets.Sparse
	LiveOut intsets.Sparse
}

// Func is a function being allocated
type Func struct {
	Name      string
	Blocks    []*Block
	Regs      *RegTable
	FrameSize int64 // bytes below the frame register already in use

	// Names maps virtual register names from a parsed listing to their ids
	Names map[string]RegID
}

// NewFunc creates an empty function for the given target
func NewFunc(name string, t *arch.Table) *Func {
	return &Func{Name: name, Regs: NewRegTable(t)}
}

// NewBlock appends a block with the next id
func (f *Func) NewBlock(labels ...string) *Block {
	b := &Block{ID: len(f.Blocks), Labels: labels}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Edge records a control flow edge between two blocks
func (f *Func) Edge(from, to *Block) {
	from.Succ.Insert(to.ID)
	to.Pred.Insert(from.ID)
}

// NumInsns counts instructions across all blocks
func (f *Func) NumInsns() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Insns)
	}
	return n
}

// Program is a set of independent functions
type Program struct {
	Funcs []*Func
}

// RegTable maps register ids to their Locs. Physical registers are memoized
// so each one has a single id per function.
type RegTable struct {
	arch *arch.Table
	locs []*Loc
	phys map[arch.PhysReg]*Loc
}

// NewRegTable creates an empty register table
func NewRegTable(t *arch.Table) *RegTable {
	return &RegTable{arch: t, phys: make(map[arch.PhysReg]*Loc)}
}

// Arch returns the table the registers belong to
func (rt *RegTable) Arch() *arch.Table {
	return rt.arch
}

// NewVirt creates a fresh virtual register
func (rt *RegTable) NewVirt(m arch.Mode) *Loc {
	l := &Loc{Kind: LocReg, Mode: m, ID: RegID(len(rt.locs))}
	rt.locs = append(rt.locs, l)
	return l
}

// Phys returns the prepainted Loc of a physical register
func (rt *RegTable) Phys(r arch.PhysReg) *Loc {
	if l, ok := rt.phys[r]; ok {
		return l
	}
	l := &Loc{Kind: LocReg, Mode: rt.arch.Mode(r), ID: RegID(len(rt.locs)), Colour: r, physical: true}
	rt.locs = append(rt.locs, l)
	rt.phys[r] = l
	return l
}

// IsPhys reports whether the register is a physical one
func (rt *RegTable) IsPhys(id RegID) bool {
	return rt.Get(id).physical
}

// IsFixed reports whether the register is a non-allocatable physical register
func (rt *RegTable) IsFixed(l *Loc) bool {
	return l.physical && rt.arch.IsFixed(l.Colour)
}

// Get returns the Loc of a register id
func (rt *RegTable) Get(id RegID) *Loc {
	if int(id) < 0 || int(id) >= len(rt.locs) {
		panic(fmt.Sprintf("asm: register id %d out of range (%d registers)", id, len(rt.locs)))
	}
	return rt.locs[id]
}

// Len returns the number of registers, which is also the next id
func (rt *RegTable) Len() int {
	return len(rt.locs)
}

// All returns every register in id order
func (rt *RegTable) All() []*Loc {
	return rt.locs
}
