package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const identity = `func id
	movq %rdi, %v1
	movq %v1, %rax
	ret
`

func TestAlloc(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "id.s")
	if err := os.WriteFile(src, []byte(identity), 0644); err != nil {
		t.Fatal(err)
	}

	var out, errb bytes.Buffer
	if err := alloc([]string{src, "-k", "4", "-verify"}, nil, &out, &errb); err != nil {
		t.Fatalf("alloc failed: %v\n%s", err, errb.String())
	}
	got := out.String()
	if strings.Contains(got, "%v") {
		t.Errorf("virtual registers left in output:\n%s", got)
	}
	for _, want := range []string{"func id\n", "\tmovq %rdi, %rax\n", "\tret\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestAllocStdinToFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.s")
	var out, errb bytes.Buffer
	if err := alloc([]string{"-", "-o", dst}, strings.NewReader(identity), &out, &errb); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout should be empty when -o is given, got %q", out.String())
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "func id\n") {
		t.Errorf("output file = %q", data)
	}
}

func TestAllocDump(t *testing.T) {
	var out, errb bytes.Buffer
	if err := alloc([]string{"-", "-dump"}, strings.NewReader(identity), &out, &errb); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if !strings.Contains(errb.String(), "IGRAPH id") {
		t.Errorf("dump missing from stderr:\n%s", errb.String())
	}
}

func TestAllocErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		src  string
		want string
	}{
		{"no input", nil, "", "no input file"},
		{"bad heuristic", []string{"-", "-heuristic", "random"}, identity, "random"},
		{"too many colours", []string{"-", "-k", "99"}, identity, "colour count"},
		{"parse error", []string{"-"}, "func f\n\tfrob %v1\n", "unknown instruction"},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.s")}, "", "nope.s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errb bytes.Buffer
			err := alloc(tt.args, strings.NewReader(tt.src), &out, &errb)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
