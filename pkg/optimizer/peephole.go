// Package optimizer - Post-allocation peephole pass
// Recognizes instruction patterns made redundant once every register has a colour
package optimizer

import (
	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
)

// PeepholeOptimize cleans up every function of an allocated program and
// returns the number of instructions removed or rewritten
func PeepholeOptimize(prog *asm.Program, t *arch.Table) int {
	logger.Debug("Running peephole optimizer")

	changes := 0
	for _, fn := range prog.Funcs {
		changes += Peephole(fn, t)
	}

	logger.Info("Peephole optimization complete", "changes", changes)
	return changes
}

// Peephole cleans up one allocated function
func Peephole(fn *asm.Func, t *arch.Table) int {
	changes := 0
	for _, b := range fn.Blocks {
		var n int
		b.Insns, n = optimizeInstSequence(b.Insns, t)
		changes += n
	}
	return changes
}

// optimizeInstSequence optimizes a sequence of instructions
func optimizeInstSequence(insts []*asm.Insn, t *arch.Table) ([]*asm.Insn, int) {
	if len(insts) == 0 {
		return insts, 0
	}

	result := make([]*asm.Insn, 0, len(insts))
	changes := 0
	for i := 0; i < len(insts); i++ {
		in := insts[i]

		// Try two-instruction patterns against what has been kept so far
		if n := len(result); n > 0 {
			if optimized, ok := tryTwoInstPattern(result[n-1], in, t); ok {
				changes++
				if optimized == nil {
					continue
				}
				in = optimized
			}
		}

		if trySingleInstPattern(in, t) {
			changes++
			continue
		}
		result = append(result, in)
	}
	return result, changes
}

// trySingleInstPattern reports whether an instruction can be dropped
func trySingleInstPattern(in *asm.Insn, t *arch.Table) bool {
	// Pattern: movq r, r  =>  nothing. Narrower self moves stay: movl clears
	// the upper half of the register.
	if in.Op == t.MoveOp && in.Mode == arch.ModeQword && len(in.Args) == 2 && sameReg(in.Args[0], in.Args[1]) {
		logger.Debug("Peephole: eliminated self move", "register", t.RegName(in.Args[0].Colour))
		return true
	}
	return false
}

// tryTwoInstPattern looks at a kept instruction and its successor. ok means
// the successor changes: a nil replacement drops it.
func tryTwoInstPattern(prev, in *asm.Insn, t *arch.Table) (*asm.Insn, bool) {
	if prev.Op != t.MoveOp || in.Op != t.MoveOp || len(prev.Args) != 2 || len(in.Args) != 2 {
		return nil, false
	}
	src, dst := prev.Args[0], prev.Args[1]

	// Pattern: store r, slot; load slot, s  =>  store r, slot; mov r, s
	if src.IsReg() && dst.IsMem() && sameMem(dst, in.Args[0]) && in.Args[1].IsReg() && in.Mode == prev.Mode {
		if sameReg(src, in.Args[1]) && in.Mode == arch.ModeQword {
			logger.Debug("Peephole: eliminated reload of stored register")
			return nil, true
		}
		logger.Debug("Peephole: forwarded store to load")
		return asm.NewInsn(t.MoveOp, in.Mode, src, in.Args[1]), true
	}

	// Pattern: mov a, b; mov b, a  =>  mov a, b
	if src.IsReg() && dst.IsReg() && sameReg(src, in.Args[1]) && sameReg(dst, in.Args[0]) && in.Mode == arch.ModeQword {
		logger.Debug("Peephole: eliminated move back")
		return nil, true
	}
	return nil, false
}

// sameReg compares the registers two operands were given
func sameReg(a, b *asm.Loc) bool {
	return a.IsReg() && b.IsReg() && a.Colour != arch.RegNone && a.Colour == b.Colour
}

func sameMem(a, b *asm.Loc) bool {
	if !a.IsMem() || !b.IsMem() {
		return false
	}
	if a.Disp != b.Disp || a.Sym != b.Sym || a.Scale != b.Scale {
		return false
	}
	return sameOptReg(a.Base, b.Base) && sameOptReg(a.Index, b.Index)
}

func sameOptReg(a, b *asm.Loc) bool {
	if a == nil || b == nil {
		return a == b
	}
	return sameReg(a, b)
}
