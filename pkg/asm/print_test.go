package asm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/asm"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/amd64"
)

func TestFormatLoc(t *testing.T) {
	table := amd64.NewTable()
	rt := asm.NewRegTable(table)
	v := rt.NewVirt(arch.ModeQword)
	rbp := rt.Phys(amd64.RBP)

	tests := []struct {
		name string
		loc  *asm.Loc
		want string
	}{
		{"virtual", v, "%v0"},
		{"physical", rbp, "%rbp"},
		{"immediate", asm.Imm(-5), "$-5"},
		{"label", asm.Label(".L3"), ".L3"},
		{"slot", asm.Mem(arch.ModeQword, -16, rbp, nil, 1), "-16(%rbp)"},
		{"indexed", asm.Mem(arch.ModeQword, 0, rbp, v, 8), "(%rbp,%v0,8)"},
		{"symbol", &asm.Loc{Kind: asm.LocMem, Sym: "table", Disp: 8, Base: v, Scale: 1}, "table+8(%v0)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asm.FormatLoc(tt.loc, table, 0); got != tt.want {
				t.Errorf("FormatLoc() = %q, want %q", got, tt.want)
			}
		})
	}

	v.Colour = amd64.RBX
	if got := asm.FormatLoc(v, table, asm.ShowColours); got != "%rbx" {
		t.Errorf("coloured register = %q, want %%rbx", got)
	}
	if got := asm.FormatLoc(v, table, 0); got != "%v0" {
		t.Errorf("without ShowColours = %q, want %%v0", got)
	}
}

func TestFprintRoundTrip(t *testing.T) {
	table := amd64.NewTable()
	prog, err := asm.Parse(diamond, table)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var buf bytes.Buffer
	if err := asm.Fprint(&buf, prog.Funcs[0], table, 0); err != nil {
		t.Fatalf("Fprint failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"func max\n", "\t.frame 16\n", "left:\n", "\tcmpq %v3, %v1\n", "\tjge left\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	again, err := asm.Parse(out, table)
	if err != nil {
		t.Fatalf("printed listing does not parse: %v\n%s", err, out)
	}
	var buf2 bytes.Buffer
	if err := asm.Fprint(&buf2, again.Funcs[0], table, 0); err != nil {
		t.Fatalf("Fprint failed: %v", err)
	}
	if buf2.String() != out {
		t.Errorf("round trip changed the listing:\n%s\nvs\n%s", out, buf2.String())
	}
}
