// Package arch describes a target machine to the register allocator.
//
// Design: one immutable Table per target, built once and shared by reference.
// The allocator never writes to it, so concurrent allocations can share a Table.
package arch

import "fmt"

// Mode is the width class of a register operand
type Mode int

const (
	ModeNone Mode = iota
	ModeByte
	ModeWord
	ModeDword
	ModeQword
	NumModes
)

var modeSuffix = [NumModes]string{"", "b", "w", "l", "q"}

// Suffix returns the AT&T mnemonic suffix for the width
func (m Mode) Suffix() string {
	if m < 0 || m >= NumModes {
		return ""
	}
	return modeSuffix[m]
}

// Size returns the width in bytes
func (m Mode) Size() int {
	switch m {
	case ModeByte:
		return 1
	case ModeWord:
		return 2
	case ModeDword:
		return 4
	case ModeQword:
		return 8
	}
	return 0
}

// ModeFromSuffix maps b/w/l/q back to a width
func ModeFromSuffix(s byte) (Mode, bool) {
	for m := ModeByte; m < NumModes; m++ {
		if modeSuffix[m][0] == s {
			return m, true
		}
	}
	return ModeNone, false
}

func (m Mode) String() string {
	switch m {
	case ModeByte:
		return "byte"
	case ModeWord:
		return "word"
	case ModeDword:
		return "dword"
	case ModeQword:
		return "qword"
	}
	return "none"
}

// PhysReg identifies a physical register. Zero means no register.
type PhysReg int

const RegNone PhysReg = 0

// RegInfo describes one physical register
type RegInfo struct {
	Name   string
	Mode   Mode
	Colour int  // colour slot shared by every width of the same register
	Fixed  bool // never allocatable (stack and frame pointers)

	CalleeSaved bool // must hold its value across the function
}

// Op is an opcode index into Table.Ops
type Op int

// BranchKind classifies control transfer instructions
type BranchKind int

const (
	NotBranch BranchKind = iota
	Jump
	CondJump
	Return
)

// Usage lists the operand positions an opcode reads or writes, plus the
// implicit physical registers that never show up as operands.
type Usage struct {
	Args []int
	Regs []PhysReg
}

// OpInfo is the use/def template of one opcode
type OpInfo struct {
	Name   string
	Use    Usage
	Def    Usage
	Move   bool // register to register copy, a coalescing candidate
	Branch BranchKind
}

// Table is the architecture description consumed by the allocator
type Table struct {
	Name     string
	K        int // allocatable colours
	Ops      []OpInfo
	Regs     []RegInfo // indexed by PhysReg, Regs[0] is unused
	MoveOp   Op
	FrameReg PhysReg // base register for spill slots

	regmap    [][NumModes]PhysReg // colour -> mode -> register
	opByName  map[string]Op
	regByName map[string]PhysReg
}

// NewTable indexes the opcode and register descriptions
func NewTable(name string, k int, ops []OpInfo, regs []RegInfo, moveOp Op, frame PhysReg) *Table {
	t := &Table{
		Name:      name,
		K:         k,
		Ops:       ops,
		Regs:      regs,
		MoveOp:    moveOp,
		FrameReg:  frame,
		opByName:  make(map[string]Op, len(ops)),
		regByName: make(map[string]PhysReg, len(regs)),
	}
	for i, op := range ops {
		t.opByName[op.Name] = Op(i)
	}
	ncolours := 0
	for _, r := range regs {
		if r.Name != "" && r.Colour >= ncolours {
			ncolours = r.Colour + 1
		}
	}
	t.regmap = make([][NumModes]PhysReg, ncolours)
	for i, r := range regs {
		if i == 0 || r.Name == "" {
			continue
		}
		t.regByName[r.Name] = PhysReg(i)
		t.regmap[r.Colour][r.Mode] = PhysReg(i)
	}
	return t
}

// WithK returns a copy of the table that only hands out the first k colours
func (t *Table) WithK(k int) *Table {
	if k <= 0 || k > t.K {
		panic(fmt.Sprintf("arch: colour count %d outside 1..%d", k, t.K))
	}
	c := *t
	c.K = k
	return &c
}

// Lookup finds an opcode by mnemonic (without a width suffix)
func (t *Table) Lookup(name string) (Op, bool) {
	op, ok := t.opByName[name]
	return op, ok
}

// Info returns the template of an opcode
func (t *Table) Info(op Op) *OpInfo {
	return &t.Ops[op]
}

// RegByName finds a physical register by its assembler name (without '%')
func (t *Table) RegByName(name string) (PhysReg, bool) {
	r, ok := t.regByName[name]
	return r, ok
}

// RegName returns the assembler name of a register
func (t *Table) RegName(r PhysReg) string {
	if r <= RegNone || int(r) >= len(t.Regs) {
		return "?"
	}
	return t.Regs[r].Name
}

// Mode returns the width of a physical register
func (t *Table) Mode(r PhysReg) Mode {
	return t.Regs[r].Mode
}

// Colour returns the colour slot of a physical register
func (t *Table) Colour(r PhysReg) int {
	return t.Regs[r].Colour
}

// IsFixed reports whether the register is outside the allocatable pool
func (t *Table) IsFixed(r PhysReg) bool {
	return r != RegNone && t.Regs[r].Fixed
}

// IsCalleeSaved reports whether a function has to preserve the register
func (t *Table) IsCalleeSaved(r PhysReg) bool {
	return r != RegNone && t.Regs[r].CalleeSaved
}

// RegFor returns the register of the given colour and width, or RegNone
func (t *Table) RegFor(colour int, m Mode) PhysReg {
	if colour < 0 || colour >= len(t.regmap) {
		return RegNone
	}
	return t.regmap[colour][m]
}

// Colours counts the allocatable colours that have a register of width m
func (t *Table) Colours(m Mode) int {
	n := 0
	for c := 0; c < t.K; c++ {
		if t.RegFor(c, m) != RegNone {
			n++
		}
	}
	return n
}
