// Package amd64 - Validation of allocated listings
package amd64

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
)

// ValidationError represents a listing validation error
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// Validator checks a printed listing after allocation: every register must be
// a real machine register and every instruction must be encodable.
type Validator struct {
	table  *arch.Table
	errors []ValidationError
	warns  []ValidationError
}

var (
	regPattern    = regexp.MustCompile(`%[a-z0-9]+`)
	scaledPattern = regexp.MustCompile(`\(%[a-z0-9]*,%[a-z0-9]+,(\d+)\)`)
)

// NewValidator creates a new listing validator
func NewValidator(t *arch.Table) *Validator {
	return &Validator{
		table:  t,
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

// Validate runs every check and returns all errors found
func (v *Validator) Validate(listing string) error {
	v.errors = v.errors[:0]
	v.warns = v.warns[:0]
	lines := strings.Split(listing, "\n")

	v.validateSyntax(lines)
	v.validateRegisters(lines)
	v.validateStackBalance(lines)
	v.validateInstructionValidity(lines)
	v.validateMemoryAddressing(lines)

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// Errors returns the errors found by the last Validate
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Warnings returns the warnings found by the last Validate
func (v *Validator) Warnings() []ValidationError {
	return v.warns
}

// validateSyntax checks that every line is a directive, a label or a known instruction
func (v *Validator) validateSyntax(lines []string) {
	for i, line := range lines {
		line = stripComment(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "func ") || strings.HasPrefix(line, "."):
		case strings.HasSuffix(line, ":"):
			if strings.ContainsAny(line, " \t") {
				v.addError(i+1, "invalid label format (contains spaces)", line)
			}
		default:
			if _, ok := v.mnemonic(line); !ok {
				v.addError(i+1, "unknown instruction", line)
			}
		}
	}
}

// validateRegisters checks that no virtual register survived allocation
func (v *Validator) validateRegisters(lines []string) {
	for i, line := range lines {
		for _, reg := range regPattern.FindAllString(stripComment(line), -1) {
			name := reg[1:]
			if _, ok := v.table.RegByName(name); ok {
				continue
			}
			if isVirtual(name) {
				v.addError(i+1, fmt.Sprintf("unallocated virtual register: %s", reg), line)
			} else {
				v.addError(i+1, fmt.Sprintf("invalid register: %s", reg), line)
			}
		}
	}
}

// validateStackBalance checks push/pop balance at each return
func (v *Validator) validateStackBalance(lines []string) {
	depth := 0
	for i, line := range lines {
		line = stripComment(line)
		if strings.HasPrefix(line, "func ") {
			depth = 0
			continue
		}
		info, ok := v.mnemonic(line)
		if !ok {
			continue
		}
		switch info.Name {
		case "push":
			depth++
		case "pop":
			depth--
			if depth < 0 {
				v.addError(i+1, "stack underflow detected", line)
				depth = 0
			}
		case "ret":
			if depth != 0 {
				v.addWarn(i+1, fmt.Sprintf("potential stack imbalance: depth=%d", depth), line)
			}
		}
	}
}

// validateInstructionValidity checks for operand combinations x86-64 can't encode
func (v *Validator) validateInstructionValidity(lines []string) {
	for i, line := range lines {
		line = stripComment(line)
		info, ok := v.mnemonic(line)
		if !ok {
			continue
		}
		ops := operands(line)

		for _, d := range info.Def.Args {
			if d < len(ops) && strings.HasPrefix(ops[d], "$") {
				v.addError(i+1, "immediate value cannot be destination", line)
			}
		}

		if len(ops) == 2 && isMemoryOperand(ops[0]) && isMemoryOperand(ops[1]) {
			v.addError(i+1, "x86-64 doesn't support memory-to-memory operands", line)
		}

		if (info.Name == "idiv" || info.Name == "div") && (i == 0 || !strings.Contains(lines[i-1], "cqto")) {
			v.addWarn(i+1, "division without cqto may cause incorrect results", line)
		}
	}
}

// validateMemoryAddressing checks memory addressing mode correctness
func (v *Validator) validateMemoryAddressing(lines []string) {
	for i, line := range lines {
		for _, match := range scaledPattern.FindAllStringSubmatch(line, -1) {
			switch match[1] {
			case "1", "2", "4", "8":
			default:
				v.addError(i+1, fmt.Sprintf("invalid scale factor: %s (must be 1, 2, 4, or 8)", match[1]), line)
			}
		}
	}
}

// Helper functions

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("listing validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Listing validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

// mnemonic looks up the opcode of an instruction line, with or without a width suffix
func (v *Validator) mnemonic(line string) (*arch.OpInfo, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	name := fields[0]
	if op, ok := v.table.Lookup(name); ok {
		return v.table.Info(op), true
	}
	if n := len(name); n > 1 {
		if _, ok := arch.ModeFromSuffix(name[n-1]); ok {
			if op, ok := v.table.Lookup(name[:n-1]); ok {
				return v.table.Info(op), true
			}
		}
	}
	return nil, false
}

// operands splits the operand list, keeping commas inside parentheses
func operands(line string) []string {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return nil
	}
	var ops []string
	depth, start := 0, i+1
	rest := line
	for j := i + 1; j < len(rest); j++ {
		switch rest[j] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				ops = append(ops, strings.TrimSpace(rest[start:j]))
				start = j + 1
			}
		}
	}
	if s := strings.TrimSpace(rest[start:]); s != "" {
		ops = append(ops, s)
	}
	return ops
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func isVirtual(name string) bool {
	if len(name) < 2 || name[0] != 'v' {
		return false
	}
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isMemoryOperand(operand string) bool {
	return strings.Contains(operand, "(") && strings.Contains(operand, ")")
}

// ValidateProgram validates an allocated amd64 listing
func ValidateProgram(listing string) error {
	return NewValidator(NewTable()).Validate(listing)
}
