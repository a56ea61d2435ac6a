// Package amd64 - Tests for listing validator
package amd64

import (
	"strings"
	"testing"
)

func TestValidatorValidCode(t *testing.T) {
	valid := `
func add
	.frame 8
entry:
	pushq %rbp
	movq %rsp, %rbp
	movq %rdi, %rax
	addq %rsi, %rax
	movq %rax, -8(%rbp)
	popq %rbp
	retq
`

	validator := NewValidator(NewTable())
	if err := validator.Validate(valid); err != nil {
		t.Errorf("Valid listing failed validation: %v", err)
	}
}

func TestValidatorErrors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    string
	}{
		{"invalid register", "func f\n\tmovq %invalid, %rax\n\tret\n", "invalid register"},
		{"virtual register", "func f\n\tmovq %v3, %rax\n\tret\n", "unallocated virtual register"},
		{"memory to memory", "func f\n\tmovq (%rdi), (%rsi)\n\tret\n", "memory-to-memory"},
		{"immediate destination", "func f\n\tmovq %rax, $42\n\tret\n", "immediate value cannot be destination"},
		{"scale factor", "func f\n\tmovq (%rax,%rbx,3), %rcx\n\tret\n", "scale factor"},
		{"unknown instruction", "func f\n\tfrobq %rax\n\tret\n", "unknown instruction"},
		{"label with space", "func f\nmy label:\n\tret\n", "invalid label format"},
		{"stack underflow", "func f\n\tpopq %rbx\n\tret\n", "stack underflow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(NewTable()).Validate(tt.listing)
			if err == nil {
				t.Fatalf("expected %q error, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q error, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidatorReuse(t *testing.T) {
	validator := NewValidator(NewTable())
	if err := validator.Validate("func f\n\tmovq %v3, %rax\n\tidivq %rcx\n\tret\n"); err == nil {
		t.Fatal("expected an error for a virtual register")
	}
	if len(validator.Errors()) == 0 || len(validator.Warnings()) == 0 {
		t.Fatalf("errors %d warnings %d, want both", len(validator.Errors()), len(validator.Warnings()))
	}

	if err := validator.Validate("func f\n\tmovq %rdi, %rax\n\tret\n"); err != nil {
		t.Errorf("clean listing failed after a bad one: %v", err)
	}
	if len(validator.Errors()) != 0 || len(validator.Warnings()) != 0 {
		t.Errorf("stale results: %v / %v", validator.Errors(), validator.Warnings())
	}
}

func TestValidatorWarnings(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    string
	}{
		{"stack imbalance", "func f\n\tpushq %rbx\n\tpushq %r12\n\tpopq %rbx\n\tretq\n", "stack imbalance"},
		{"division without cqto", "func f\n\tmovq %rdi, %rax\n\tidivq %rsi\n\tret\n", "without cqto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(NewTable())
			if err := v.Validate(tt.listing); err != nil {
				t.Fatalf("warnings must not fail validation: %v", err)
			}
			found := false
			for _, w := range v.Warnings() {
				if strings.Contains(w.Message, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("missing %q warning in %v", tt.want, v.Warnings())
			}
		})
	}
}

func TestValidatorDivisionSetup(t *testing.T) {
	valid := `
func f
	movq %rdi, %rax
	cqto
	idivq %rsi
	retq
`

	v := NewValidator(NewTable())
	if err := v.Validate(valid); err != nil {
		t.Errorf("Valid division setup failed: %v", err)
	}
	if len(v.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", v.Warnings())
	}
}

func TestOperands(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"ret", nil},
		{"movq %rax, %rbx", []string{"%rax", "%rbx"}},
		{"leaq 8(%rax,%rbx,4), %rcx", []string{"8(%rax,%rbx,4)", "%rcx"}},
		{"addq $1, -16(%rbp)", []string{"$1", "-16(%rbp)"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := operands(tt.line)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("operands(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func BenchmarkValidator(b *testing.B) {
	listing := `
func test
	pushq %rbp
	movq %rsp, %rbp
	movq %rdi, %rax
	addq %rsi, %rax
	imulq %rdx, %rax
	popq %rbp
	retq
`

	table := NewTable()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NewValidator(table).Validate(listing)
	}
}
