package regalloc

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
)

// Dump writes the interference edges followed by every block with its CFG
// links, use/def and liveness sets and instructions. g may be nil, in which
// case the edge section is empty.
func Dump(w io.Writer, fn *asm.Func, t *arch.Table, g *InterferenceGraph) error {
	bw := bufio.NewWriter(w)
	regName := func(id asm.RegID) string {
		return asm.FormatLoc(fn.Regs.Get(id), t, 0)
	}

	bw.WriteString("IGRAPH " + fn.Name + " ----\n")
	if g != nil {
		g.Edges(func(u, v asm.RegID) {
			bw.WriteString("\t" + regName(u) + " -- " + regName(v) + "\n")
		})
	}

	for _, b := range fn.Blocks {
		bw.WriteString("BLOCK " + strconv.Itoa(b.ID))
		if len(b.Labels) > 0 {
			bw.WriteString(" (" + strings.Join(b.Labels, ", ") + ")")
		}
		bw.WriteString("\n")
		bw.WriteString("\tpred:    " + asm.FormatSet(&b.Pred) + "\n")
		bw.WriteString("\tsucc:    " + asm.FormatSet(&b.Succ) + "\n")
		bw.WriteString("\tuse:     " + asm.FormatRegSet(fn, &b.Use, t) + "\n")
		bw.WriteString("\tdef:     " + asm.FormatRegSet(fn, &b.Def, t) + "\n")
		bw.WriteString("\tlivein:  " + asm.FormatRegSet(fn, &b.LiveIn, t) + "\n")
		bw.WriteString("\tliveout: " + asm.FormatRegSet(fn, &b.LiveOut, t) + "\n")
		for _, in := range b.Insns {
			bw.WriteString("\t\t" + asm.FormatInsn(in, t, 0) + "\n")
		}
	}
	return bw.Flush()
}
