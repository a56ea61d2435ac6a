// Package amd64 describes x86-64 to the register allocator.
//
// Design: System V register file, AT&T operand order (source first).
// Colour slots 0-13 are allocatable; %rsp and %rbp sit in slots 14 and 15.
package amd64

import "github.com/GriffinCanCode/typthon-regalloc/pkg/arch"

const (
	numColours = 16
	// Allocatable colours; %rsp and %rbp are not in the pool
	K = 14
)

// reg computes the PhysReg of a colour slot at a given width
func reg(colour int, m arch.Mode) arch.PhysReg {
	return arch.PhysReg(1 + colour*4 + int(m-arch.ModeByte))
}

// Qword and dword registers referenced by opcode templates and tests
const (
	RAX arch.PhysReg = 1 + 0*4 + 3
	RCX arch.PhysReg = 1 + 1*4 + 3
	RDX arch.PhysReg = 1 + 2*4 + 3
	RBX arch.PhysReg = 1 + 3*4 + 3
	RSI arch.PhysReg = 1 + 4*4 + 3
	RDI arch.PhysReg = 1 + 5*4 + 3
	R8  arch.PhysReg = 1 + 6*4 + 3
	R9  arch.PhysReg = 1 + 7*4 + 3
	R10 arch.PhysReg = 1 + 8*4 + 3
	R11 arch.PhysReg = 1 + 9*4 + 3
	R12 arch.PhysReg = 1 + 10*4 + 3
	R13 arch.PhysReg = 1 + 11*4 + 3
	R14 arch.PhysReg = 1 + 12*4 + 3
	R15 arch.PhysReg = 1 + 13*4 + 3
	RSP arch.PhysReg = 1 + 14*4 + 3
	RBP arch.PhysReg = 1 + 15*4 + 3

	EAX arch.PhysReg = 1 + 0*4 + 2
	EDX arch.PhysReg = 1 + 2*4 + 2
	ESP arch.PhysReg = 1 + 14*4 + 2
	EBP arch.PhysReg = 1 + 15*4 + 2
)

// names per colour slot: byte, word, dword, qword
var regNames = [numColours][4]string{
	{"al", "ax", "eax", "rax"},
	{"cl", "cx", "ecx", "rcx"},
	{"dl", "dx", "edx", "rdx"},
	{"bl", "bx", "ebx", "rbx"},
	{"sil", "si", "esi", "rsi"},
	{"dil", "di", "edi", "rdi"},
	{"r8b", "r8w", "r8d", "r8"},
	{"r9b", "r9w", "r9d", "r9"},
	{"r10b", "r10w", "r10d", "r10"},
	{"r11b", "r11w", "r11d", "r11"},
	{"r12b", "r12w", "r12d", "r12"},
	{"r13b", "r13w", "r13d", "r13"},
	{"r14b", "r14w", "r14d", "r14"},
	{"r15b", "r15w", "r15d", "r15"},
	{"", "", "esp", "rsp"},
	{"", "", "ebp", "rbp"},
}

// ArgRegs are the System V integer argument registers
var ArgRegs = []arch.PhysReg{RDI, RSI, RDX, RCX, R8, R9}

// CallerSaved registers are clobbered by every call
var CallerSaved = []arch.PhysReg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

// CalleeSaved registers must be preserved across the function by whoever
// emits its prologue; %rbp is fixed and not listed
var CalleeSaved = []arch.PhysReg{RBX, R12, R13, R14, R15}

// Opcodes, in table order
const (
	OpMov arch.Op = iota
	OpMovzx
	OpMovsx
	OpLea
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpImul
	OpNeg
	OpNot
	OpInc
	OpDec
	OpShl
	OpShr
	OpSar
	OpCmp
	OpTest
	OpIdiv
	OpDiv
	OpCqto
	OpSete
	OpSetne
	OpSetl
	OpSetle
	OpSetg
	OpSetge
	OpPush
	OpPop
	OpCall
	OpRet
	OpJmp
	OpJe
	OpJne
	OpJl
	OpJle
	OpJg
	OpJge
	OpNop
)

func use(args ...int) arch.Usage { return arch.Usage{Args: args} }

func binop(name string) arch.OpInfo {
	return arch.OpInfo{Name: name, Use: use(0, 1), Def: use(1)}
}

func unop(name string) arch.OpInfo {
	return arch.OpInfo{Name: name, Use: use(0), Def: use(0)}
}

func setcc(name string) arch.OpInfo {
	return arch.OpInfo{Name: name, Def: use(0)}
}

func jcc(name string) arch.OpInfo {
	return arch.OpInfo{Name: name, Branch: arch.CondJump}
}

func ops() []arch.OpInfo {
	divide := arch.Usage{Args: []int{0}, Regs: []arch.PhysReg{RAX, RDX}}
	return []arch.OpInfo{
		OpMov:   {Name: "mov", Use: use(0), Def: use(1), Move: true},
		OpMovzx: {Name: "movzx", Use: use(0), Def: use(1)},
		OpMovsx: {Name: "movsx", Use: use(0), Def: use(1)},
		OpLea:   {Name: "lea", Def: use(1)},
		OpAdd:   binop("add"),
		OpSub:   binop("sub"),
		OpAnd:   binop("and"),
		OpOr:    binop("or"),
		OpXor:   binop("xor"),
		OpImul:  binop("imul"),
		OpNeg:   unop("neg"),
		OpNot:   unop("not"),
		OpInc:   unop("inc"),
		OpDec:   unop("dec"),
		OpShl:   binop("shl"),
		OpShr:   binop("shr"),
		OpSar:   binop("sar"),
		OpCmp:   {Name: "cmp", Use: use(0, 1)},
		OpTest:  {Name: "test", Use: use(0, 1)},
		OpIdiv:  {Name: "idiv", Use: divide, Def: arch.Usage{Regs: divide.Regs}},
		OpDiv:   {Name: "div", Use: divide, Def: arch.Usage{Regs: divide.Regs}},
		OpCqto: {
			Name: "cqto",
			Use:  arch.Usage{Regs: []arch.PhysReg{RAX}},
			Def:  arch.Usage{Regs: []arch.PhysReg{RDX}},
		},
		OpSete:  setcc("sete"),
		OpSetne: setcc("setne"),
		OpSetl:  setcc("setl"),
		OpSetle: setcc("setle"),
		OpSetg:  setcc("setg"),
		OpSetge: setcc("setge"),
		OpPush:  {Name: "push", Use: use(0)},
		OpPop:   {Name: "pop", Def: use(0)},
		OpCall:  {Name: "call", Use: arch.Usage{Regs: ArgRegs}, Def: arch.Usage{Regs: CallerSaved}},
		OpRet:   {Name: "ret", Use: arch.Usage{Regs: []arch.PhysReg{RAX}}, Branch: arch.Return},
		OpJmp:   {Name: "jmp", Branch: arch.Jump},
		OpJe:    jcc("je"),
		OpJne:   jcc("jne"),
		OpJl:    jcc("jl"),
		OpJle:   jcc("jle"),
		OpJg:    jcc("jg"),
		OpJge:   jcc("jge"),
		OpNop:   {Name: "nop"},
	}
}

func regs() []arch.RegInfo {
	infos := make([]arch.RegInfo, 1+numColours*4)
	saved := make(map[int]bool, len(CalleeSaved))
	for _, r := range CalleeSaved {
		saved[int(r-1)/4] = true
	}
	for colour, names := range regNames {
		for i, name := range names {
			if name == "" {
				continue
			}
			m := arch.ModeByte + arch.Mode(i)
			infos[reg(colour, m)] = arch.RegInfo{
				Name:   name,
				Mode:   m,
				Colour: colour,
				Fixed:  colour >= K,

				CalleeSaved: saved[colour],
			}
		}
	}
	return infos
}

// NewTable builds the x86-64 architecture table
func NewTable() *arch.Table {
	return arch.NewTable("amd64", K, ops(), regs(), OpMov, RBP)
}
