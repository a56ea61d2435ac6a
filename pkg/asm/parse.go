package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/arch"
)

// Parser reads listings:
//
//	func name
//		.frame 16
//	entry:
//		movq %rdi, %v1
//		addq $1, %v1
//		movq %v1, %rax
//		ret
//
// %vN names a virtual register; its width comes from the first
// mnemonic suffix it appears under (qword when unsized).
type Parser struct {
	lexer *Lexer
	arch  *arch.Table
	tok   Token
	peek  Token

	prog  *Program
	fn    *Func
	cur   *Block
	virt  map[string]*Loc
	label map[string]*Block
}

// Parse reads a listing into a program
func Parse(src string, t *arch.Table) (*Program, error) {
	p := &Parser{lexer: NewLexer(src), arch: t, prog: &Program{}}
	p.tok = p.lexer.NextToken()
	p.peek = p.lexer.NextToken()
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.prog, nil
}

func (p *Parser) next() {
	p.tok = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.tok.Line, Col: p.tok.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.tok
	if tok.Type != tt {
		return tok, p.errorf("expected %s, found %s %q", tt, tok.Type, tok.Lexeme)
	}
	p.next()
	return tok, nil
}

func (p *Parser) parse() error {
	for p.tok.Type != EOF {
		var err error
		switch {
		case p.tok.Type == NEWLINE:
			p.next()
			continue
		case p.tok.Type == IDENT && p.tok.Lexeme == "func":
			err = p.parseFunc()
		case p.fn == nil:
			err = p.errorf("%q outside of a function", p.tok.Lexeme)
		case p.tok.Type == IDENT && p.tok.Lexeme == ".frame":
			err = p.parseFrame()
		case p.tok.Type == IDENT && p.peek.Type == COLON:
			p.startLabel(p.tok.Lexeme)
			p.next()
			p.next()
			continue
		case p.tok.Type == IDENT:
			err = p.parseInsn()
		default:
			err = p.errorf("unexpected %s %q", p.tok.Type, p.tok.Lexeme)
		}
		if err != nil {
			return err
		}
		if p.tok.Type != EOF {
			if _, err := p.expect(NEWLINE); err != nil {
				return err
			}
		}
	}
	return p.finishFunc()
}

func (p *Parser) parseFunc() error {
	if err := p.finishFunc(); err != nil {
		return err
	}
	p.next()
	name, err := p.expect(IDENT)
	if err != nil {
		return err
	}
	p.fn = NewFunc(name.Lexeme, p.arch)
	p.fn.Names = make(map[string]RegID)
	p.cur = nil
	p.virt = make(map[string]*Loc)
	p.label = make(map[string]*Block)
	return nil
}

func (p *Parser) parseFrame() error {
	p.next()
	tok, err := p.expect(NUMBER)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
	if err != nil || n < 0 {
		return &ParseError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("bad frame size %q", tok.Lexeme)}
	}
	p.fn.FrameSize = n
	return nil
}

// startLabel opens a new block unless the current one is still empty
func (p *Parser) startLabel(name string) {
	if p.cur == nil || len(p.cur.Insns) > 0 {
		p.cur = p.fn.NewBlock()
	}
	p.cur.Labels = append(p.cur.Labels, name)
	p.label[name] = p.cur
}

func (p *Parser) lookupOp(mnemonic string) (arch.Op, arch.Mode, bool) {
	if op, ok := p.arch.Lookup(mnemonic); ok {
		return op, arch.ModeNone, true
	}
	if n := len(mnemonic); n > 1 {
		if m, ok := arch.ModeFromSuffix(mnemonic[n-1]); ok {
			if op, ok := p.arch.Lookup(mnemonic[:n-1]); ok {
				return op, m, true
			}
		}
	}
	return 0, arch.ModeNone, false
}

func (p *Parser) parseInsn() error {
	mnemonic := p.tok
	op, mode, ok := p.lookupOp(mnemonic.Lexeme)
	if !ok {
		return p.errorf("unknown instruction %q", mnemonic.Lexeme)
	}
	p.next()

	in := &Insn{Op: op, Mode: mode}
	for p.tok.Type != NEWLINE && p.tok.Type != EOF {
		if len(in.Args) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return err
			}
		}
		arg, err := p.parseOperand(mode)
		if err != nil {
			return err
		}
		in.Args = append(in.Args, arg)
	}
	if err := p.checkArity(in, mnemonic); err != nil {
		return err
	}

	if p.cur == nil {
		p.cur = p.fn.NewBlock()
	}
	p.cur.Insns = append(p.cur.Insns, in)
	if p.arch.Info(op).Branch != arch.NotBranch {
		p.cur = nil
	}
	return nil
}

// checkArity makes sure every operand position named by a template exists
func (p *Parser) checkArity(in *Insn, mnemonic Token) error {
	info := p.arch.Info(in.Op)
	need := 0
	for _, u := range [][]int{info.Use.Args, info.Def.Args} {
		for _, i := range u {
			if i+1 > need {
				need = i + 1
			}
		}
	}
	if info.Branch == arch.Jump || info.Branch == arch.CondJump {
		need = 1
	}
	if len(in.Args) < need {
		return &ParseError{Line: mnemonic.Line, Col: mnemonic.Col,
			Msg: fmt.Sprintf("%s takes %d operands, found %d", mnemonic.Lexeme, need, len(in.Args))}
	}
	for _, i := range info.Def.Args {
		if in.Args[i].Kind == LocImm {
			return &ParseError{Line: mnemonic.Line, Col: mnemonic.Col,
				Msg: fmt.Sprintf("%s writes an immediate operand", mnemonic.Lexeme)}
		}
	}
	return nil
}

func (p *Parser) parseOperand(mode arch.Mode) (*Loc, error) {
	switch p.tok.Type {
	case REG:
		return p.parseReg(mode)
	case IMM:
		v, err := strconv.ParseInt(p.tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorf("bad immediate %q", p.tok.Lexeme)
		}
		p.next()
		return Imm(v), nil
	case NUMBER, LPAREN:
		return p.parseMem(mode, "")
	case IDENT:
		name := p.tok.Lexeme
		p.next()
		if p.tok.Type == LPAREN {
			return p.parseMem(mode, name)
		}
		return Label(name), nil
	}
	return nil, p.errorf("unexpected %s %q in operand", p.tok.Type, p.tok.Lexeme)
}

func (p *Parser) parseReg(mode arch.Mode) (*Loc, error) {
	tok, err := p.expect(REG)
	if err != nil {
		return nil, err
	}
	name := tok.Lexeme
	if r, ok := p.arch.RegByName(name); ok {
		return p.fn.Regs.Phys(r), nil
	}
	if strings.HasPrefix(name, "v") {
		if _, err := strconv.Atoi(name[1:]); err == nil {
			if l, ok := p.virt[name]; ok {
				return l, nil
			}
			if mode == arch.ModeNone {
				mode = arch.ModeQword
			}
			l := p.fn.Regs.NewVirt(mode)
			p.virt[name] = l
			return l, nil
		}
	}
	return nil, &ParseError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("unknown register %%%s", name)}
}

// parseMem reads [disp](base[,index[,scale]]) after an optional symbol
func (p *Parser) parseMem(mode arch.Mode, sym string) (*Loc, error) {
	m := &Loc{Kind: LocMem, Mode: mode, Sym: sym, Scale: 1}
	if p.tok.Type == NUMBER {
		d, err := strconv.ParseInt(p.tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorf("bad displacement %q", p.tok.Lexeme)
		}
		m.Disp = d
		p.next()
	}
	if p.tok.Type != LPAREN {
		return m, nil
	}
	p.next()
	var err error
	if p.tok.Type == REG {
		if m.Base, err = p.parseReg(arch.ModeQword); err != nil {
			return nil, err
		}
	}
	if p.tok.Type == COMMA {
		p.next()
		if m.Index, err = p.parseReg(arch.ModeQword); err != nil {
			return nil, err
		}
		if p.tok.Type == COMMA {
			p.next()
			tok, err := p.expect(NUMBER)
			if err != nil {
				return nil, err
			}
			m.Scale, _ = strconv.Atoi(tok.Lexeme)
			switch m.Scale {
			case 1, 2, 4, 8:
			default:
				return nil, &ParseError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("bad scale %d", m.Scale)}
			}
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return m, nil
}

// finishFunc resolves jump targets into CFG edges
func (p *Parser) finishFunc() error {
	fn := p.fn
	if fn == nil {
		return nil
	}
	p.fn = nil
	for i, b := range fn.Blocks {
		falls := true
		if n := len(b.Insns); n > 0 {
			last := b.Insns[n-1]
			switch p.arch.Info(last.Op).Branch {
			case arch.Return:
				falls = false
			case arch.Jump, arch.CondJump:
				target := last.Args[0]
				if target.Kind != LocLabel {
					return fmt.Errorf("%s: indirect jump in block %d", fn.Name, b.ID)
				}
				tb, ok := p.label[target.Label]
				if !ok {
					return fmt.Errorf("%s: no block with label %s", fn.Name, target.Label)
				}
				fn.Edge(b, tb)
				falls = p.arch.Info(last.Op).Branch == arch.CondJump
			}
		}
		if falls && i+1 < len(fn.Blocks) {
			fn.Edge(b, fn.Blocks[i+1])
		}
	}
	p.prog.Funcs = append(p.prog.Funcs, fn)
	return nil
}
