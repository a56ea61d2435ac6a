package asm

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
)

// PrintFlags select how registers are rendered
type PrintFlags int

const (
	// ShowColours prints assigned physical registers instead of virtual ids
	ShowColours PrintFlags = 1 << iota
)

// FormatLoc renders one operand in AT&T syntax
func FormatLoc(l *Loc, t *arch.Table, flags PrintFlags) string {
	switch l.Kind {
	case LocReg:
		return formatReg(l, t, flags)
	case LocImm:
		return fmt.Sprintf("$%d", l.Imm)
	case LocLabel:
		return l.Label
	case LocMem:
		var sb strings.Builder
		if l.Sym != "" {
			sb.WriteString(l.Sym)
			if l.Disp != 0 {
				fmt.Fprintf(&sb, "%+d", l.Disp)
			}
		} else if l.Disp != 0 {
			fmt.Fprintf(&sb, "%d", l.Disp)
		}
		if l.Base != nil || l.Index != nil {
			sb.WriteByte('(')
			if l.Base != nil {
				sb.WriteString(formatReg(l.Base, t, flags))
			}
			if l.Index != nil {
				sb.WriteByte(',')
				sb.WriteString(formatReg(l.Index, t, flags))
				if l.Scale > 1 {
					fmt.Fprintf(&sb, ",%d", l.Scale)
				}
			}
			sb.WriteByte(')')
		}
		return sb.String()
	}
	return "?"
}

func formatReg(l *Loc, t *arch.Table, flags PrintFlags) string {
	if l.physical || (flags&ShowColours != 0 && l.Colour != arch.RegNone) {
		return "%" + t.RegName(l.Colour)
	}
	return fmt.Sprintf("%%v%d", l.ID)
}

// FormatInsn renders an instruction
func FormatInsn(in *Insn, t *arch.Table, flags PrintFlags) string {
	var sb strings.Builder
	sb.WriteString(t.Info(in.Op).Name)
	sb.WriteString(in.Mode.Suffix())
	for i, a := range in.Args {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatLoc(a, t, flags))
	}
	return sb.String()
}

// Fprint writes a function in listing format
func Fprint(w io.Writer, f *Func, t *arch.Table, flags PrintFlags) error {
	if _, err := fmt.Fprintf(w, "func %s\n", f.Name); err != nil {
		return err
	}
	if f.FrameSize != 0 {
		fmt.Fprintf(w, "\t.frame %d\n", f.FrameSize)
	}
	for _, b := range f.Blocks {
		for _, l := range b.Labels {
			fmt.Fprintf(w, "%s:\n", l)
		}
		for _, in := range b.Insns {
			if _, err := fmt.Fprintf(w, "\t%s\n", FormatInsn(in, t, flags)); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatSet renders a set of block or register ids as "1,2,3"
func FormatSet(s *intsets.Sparse) string {
	var sb strings.Builder
	for i, x := range s.AppendTo(nil) {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", x)
	}
	return sb.String()
}

// FormatRegSet renders a set of register ids as operands
func FormatRegSet(f *Func, s *intsets.Sparse, t *arch.Table) string {
	var sb strings.Builder
	for i, x := range s.AppendTo(nil) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatReg(f.Regs.Get(RegID(x)), t, 0))
	}
	return sb.String()
}
