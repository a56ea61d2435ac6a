package regalloc

import (
	"sort"
	"testing"

	"golang.org/x/tools/container/intsets"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/amd64"
)

// loopSrc keeps four registers live around a loop back edge
const loopSrc = `
func loop
entry:
	movq $1, %v1
	movq $2, %v2
	movq $3, %v3
	movq $4, %v4
body:
	addq %v1, %v2
	addq %v2, %v3
	addq %v3, %v4
	addq %v4, %v1
	cmpq $100, %v1
	jl body
exit:
	movq %v1, %rax
	addq %v2, %rax
	addq %v3, %rax
	addq %v4, %rax
	ret
`

func parseFunc(t *testing.T, table *arch.Table, src string) *asm.Func {
	t.Helper()
	prog, err := asm.Parse(src, table)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(prog.Funcs))
	}
	return prog.Funcs[0]
}

func vreg(t *testing.T, fn *asm.Func, name string) asm.RegID {
	t.Helper()
	id, ok := fn.Names[name]
	if !ok {
		t.Fatalf("no register %%%s in %s", name, fn.Name)
	}
	return id
}

func ids(xs []asm.RegID) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	sort.Ints(out)
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUsesDefs(t *testing.T) {
	table := amd64.NewTable()
	src := `
func f
	idivq %v1
	movq %v1, 8(%v2,%v3,4)
	pushq %rbp
	addq %v4, %v5
	call g
`
	fn := parseFunc(t, table, src)
	insns := fn.Blocks[0].Insns
	rax := fn.Regs.Phys(amd64.RAX).ID
	rdx := fn.Regs.Phys(amd64.RDX).ID
	v := func(n string) int { return int(vreg(t, fn, n)) }

	tests := []struct {
		name string
		insn *asm.Insn
		uses []int
		defs []int
	}{
		{"idiv implicit registers", insns[0], []int{v("v1"), int(rax), int(rdx)}, []int{int(rax), int(rdx)}},
		{"memory destination", insns[1], []int{v("v1"), v("v2"), v("v3")}, nil},
		{"fixed register ignored", insns[2], nil, nil},
		{"two operand", insns[3], []int{v("v4"), v("v5")}, []int{v("v5")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ids(Uses(fn, table, tt.insn, nil))
			d := ids(Defs(fn, table, tt.insn, nil))
			want := append([]int(nil), tt.uses...)
			sort.Ints(want)
			if !sameInts(u, want) {
				t.Errorf("Uses = %v, want %v", u, want)
			}
			want = append([]int(nil), tt.defs...)
			sort.Ints(want)
			if !sameInts(d, want) {
				t.Errorf("Defs = %v, want %v", d, want)
			}
		})
	}

	if got := len(Defs(fn, table, insns[4], nil)); got != len(amd64.CallerSaved) {
		t.Errorf("call defines %d registers, want %d", got, len(amd64.CallerSaved))
	}
	if got := len(Uses(fn, table, insns[4], nil)); got != len(amd64.ArgRegs) {
		t.Errorf("call reads %d registers, want %d", got, len(amd64.ArgRegs))
	}
}

func TestIsMove(t *testing.T) {
	table := amd64.NewTable()
	src := `
func f
	movq %v1, %v2
	movq $1, %v2
	movq %v1, 8(%v2)
	movq %rsp, %v1
	movq %v1, %rax
	addq %v1, %v2
`
	fn := parseFunc(t, table, src)
	want := []bool{true, false, false, false, true, false}
	for i, in := range fn.Blocks[0].Insns {
		if got := isMove(fn, table, in); got != want[i] {
			t.Errorf("isMove(%s) = %v, want %v", asm.FormatInsn(in, table, 0), got, want[i])
		}
	}
}

// checkFixpoint verifies the dataflow equations hold for every block
func checkFixpoint(t *testing.T, fn *asm.Func) {
	t.Helper()
	var out, in intsets.Sparse
	for _, b := range fn.Blocks {
		out.Clear()
		for _, s := range b.Succ.AppendTo(nil) {
			out.UnionWith(&fn.Blocks[s].LiveIn)
		}
		in.Difference(&out, &b.Def)
		in.UnionWith(&b.Use)
		if !out.Equals(&b.LiveOut) {
			t.Errorf("block %d: liveout %s, equations give %s", b.ID, b.LiveOut.String(), out.String())
		}
		if !in.Equals(&b.LiveIn) {
			t.Errorf("block %d: livein %s, equations give %s", b.ID, b.LiveIn.String(), in.String())
		}
	}
}

func TestLivenessLoop(t *testing.T) {
	table := amd64.NewTable()
	fn := parseFunc(t, table, loopSrc)
	if len(fn.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(fn.Blocks))
	}

	passes := Liveness(fn, table)
	if passes < 2 {
		t.Errorf("a loop needs at least 2 passes, took %d", passes)
	}
	checkFixpoint(t, fn)

	entry, body, exit := fn.Blocks[0], fn.Blocks[1], fn.Blocks[2]
	if !entry.LiveIn.IsEmpty() {
		t.Errorf("entry livein = %s, want empty", entry.LiveIn.String())
	}
	for _, name := range []string{"v1", "v2", "v3", "v4"} {
		r := int(vreg(t, fn, name))
		if !body.LiveIn.Has(r) || !body.LiveOut.Has(r) {
			t.Errorf("%s not live around the loop", name)
		}
		if !exit.LiveIn.Has(r) {
			t.Errorf("%s not live into exit", name)
		}
	}
	if !exit.LiveOut.IsEmpty() {
		t.Errorf("exit liveout = %s, want empty", exit.LiveOut.String())
	}
	rax := fn.Regs.Phys(amd64.RAX).ID
	if exit.LiveIn.Has(int(rax)) {
		t.Error("rax is defined before use in exit")
	}
}

func TestLivenessStraightLine(t *testing.T) {
	table := amd64.NewTable()
	src := `
func f
	movq %rdi, %v1
	addq %rsi, %v1
	movq %v1, %rax
	ret
`
	fn := parseFunc(t, table, src)
	// one pass to settle, one to see nothing changed
	if got := Liveness(fn, table); got != 2 {
		t.Errorf("a single block converges in 2 passes, took %d", got)
	}
	checkFixpoint(t, fn)

	b := fn.Blocks[0]
	rdi := fn.Regs.Phys(amd64.RDI).ID
	rsi := fn.Regs.Phys(amd64.RSI).ID
	if !b.LiveIn.Has(int(rdi)) || !b.LiveIn.Has(int(rsi)) || b.LiveIn.Len() != 2 {
		t.Errorf("livein = %s, want {rdi, rsi}", asm.FormatRegSet(fn, &b.LiveIn, table))
	}
}
