package ackermann

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/pkg/errors"
)

// ParseScript parses a script from src. Array ids are assigned in
// declaration order starting at 1.
//
// Scripts use the same syntax that expressions print with:
//
//	(array a 4 8)                     // symbolic array of 4 8-bit elements
//	(array k 2 8 (1 2))               // constant array
//	(define lo (read a (const 0 32))) // named node, shared by every use
//	(query (eq (concat (read a (const 1 32)) lo) (const 7 16)))
//
// Update lists are written as (store LIST INDEX VALUE), oldest write
// innermost. Comments use Go syntax.
func ParseScript(src string) (*Script, error) {
	p := newParser(src)
	return p.parseScript()
}

// ParseExpr parses a single expression reading the given arrays.
func ParseExpr(src string, arrays ...*Array) (Expr, error) {
	p := newParser(src)
	for _, a := range arrays {
		p.arrays[a.String()] = a
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	} else if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected %s after expression", p.text())
	}
	return expr, nil
}

type parser struct {
	s   scanner.Scanner
	tok rune

	arrays  map[string]*Array
	defines map[string]Expr
}

func newParser(src string) *parser {
	p := &parser{
		arrays:  make(map[string]*Array),
		defines: make(map[string]Expr),
	}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(*scanner.Scanner, string) {} // reported as unexpected tokens
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

// text returns a printable form of the current token.
func (p *parser) text() string {
	if p.tok == scanner.EOF {
		return "EOF"
	}
	return strconv.Quote(p.s.TokenText())
}

// pos returns the position of the current token.
func (p *parser) pos() scanner.Position {
	if p.s.Position.IsValid() {
		return p.s.Position
	}
	return p.s.Pos()
}

// errorf returns an error at the current token.
func (p *parser) errorf(format string, args ...interface{}) error {
	return errorAt(p.pos(), format, args...)
}

func errorAt(pos scanner.Position, format string, args ...interface{}) error {
	return errors.Errorf("%d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %s, found %s", scanner.TokenString(tok), p.text())
	}
	p.next()
	return nil
}

func (p *parser) ident() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected identifier, found %s", p.text())
	}
	s := p.s.TokenText()
	p.next()
	return s, nil
}

func (p *parser) uint() (uint64, error) {
	if p.tok != scanner.Int {
		return 0, p.errorf("expected integer, found %s", p.text())
	}
	v, err := strconv.ParseUint(p.s.TokenText(), 0, 64)
	if err != nil {
		return 0, p.errorf("invalid integer %s", p.text())
	}
	p.next()
	return v, nil
}

// width parses a bit width between 1 and 64.
func (p *parser) width() (uint, error) {
	pos := p.pos()
	w, err := p.uint()
	if err != nil {
		return 0, err
	} else if w == 0 || w > Width64 {
		return 0, errorAt(pos, "invalid width: %d", w)
	}
	return uint(w), nil
}

func (p *parser) parseScript() (*Script, error) {
	script := &Script{}
	for p.tok != scanner.EOF {
		if err := p.expect('('); err != nil {
			return nil, err
		}

		pos := p.pos()
		kw, err := p.ident()
		if err != nil {
			return nil, err
		}

		switch kw {
		case "array":
			a, err := p.parseArrayDecl(uint64(len(script.Arrays) + 1))
			if err != nil {
				return nil, err
			}
			script.Arrays = append(script.Arrays, a)
		case "define":
			if err := p.parseDefine(); err != nil {
				return nil, err
			}
		case "query":
			exprs, err := p.parseQuery()
			if err != nil {
				return nil, err
			}
			script.Queries = append(script.Queries, exprs)
		default:
			return nil, errorAt(pos, "unknown declaration: %s", kw)
		}
	}
	return script, nil
}

// parseArrayDecl parses the remainder of an array declaration.
func (p *parser) parseArrayDecl(id uint64) (*Array, error) {
	pos := p.pos()
	name, err := p.ident()
	if err != nil {
		return nil, err
	} else if _, ok := p.arrays[name]; ok {
		return nil, errorAt(pos, "array already declared: %s", name)
	}

	pos = p.pos()
	size, err := p.uint()
	if err != nil {
		return nil, err
	} else if size == 0 || size > uint64(^uint32(0)) {
		return nil, errorAt(pos, "invalid array size: %d", size)
	}

	rng, err := p.width()
	if err != nil {
		return nil, err
	}

	a := NewArray(id, name, uint(size), rng)
	if p.tok == '(' {
		p.next()
		for p.tok != ')' {
			pos := p.pos()
			v, err := p.uint()
			if err != nil {
				return nil, err
			} else if v > bitmask(rng) {
				return nil, errorAt(pos, "constant value %d does not fit in %d bits", v, rng)
			}
			a.ConstantValues = append(a.ConstantValues, NewConstantExpr(v, rng))
		}
		p.next()

		if len(a.ConstantValues) != int(size) {
			return nil, p.errorf("array %s: expected %d values, found %d", name, size, len(a.ConstantValues))
		}
	}

	if err := p.expect(')'); err != nil {
		return nil, err
	}
	p.arrays[name] = a
	return a, nil
}

func (p *parser) parseDefine() error {
	pos := p.pos()
	name, err := p.ident()
	if err != nil {
		return err
	} else if _, ok := p.defines[name]; ok {
		return errorAt(pos, "already defined: %s", name)
	}

	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	p.defines[name] = expr
	return p.expect(')')
}

func (p *parser) parseQuery() ([]Expr, error) {
	var exprs []Expr
	for p.tok != ')' {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	p.next()

	if len(exprs) == 0 {
		return nil, p.errorf("empty query")
	}
	return exprs, nil
}

// parseExpr parses an expression. Expressions are built exactly as written,
// without simplification.
func (p *parser) parseExpr() (Expr, error) {
	if p.tok == scanner.Ident {
		name := p.s.TokenText()
		expr, ok := p.defines[name]
		if !ok {
			return nil, p.errorf("undefined: %s", name)
		}
		p.next()
		return expr, nil
	}

	if err := p.expect('('); err != nil {
		return nil, err
	}
	pos := p.pos()
	kw, err := p.ident()
	if err != nil {
		return nil, err
	}

	var expr Expr
	switch kw {
	case "const":
		expr, err = p.parseConstant()
	case "read":
		expr, err = p.parseRead()
	case "concat":
		expr, err = p.parseConcat()
	case "extract":
		expr, err = p.parseExtract()
	case "not":
		var e Expr
		if e, err = p.parseExpr(); err == nil {
			expr = &NotExpr{Expr: e}
		}
	case "zext", "sext":
		expr, err = p.parseCast(kw == "sext")
	default:
		op, ok := lookupBinaryOp(kw)
		if !ok {
			return nil, errorAt(pos, "unknown expression: %s", kw)
		}
		expr, err = p.parseBinary(op, pos)
	}
	if err != nil {
		return nil, err
	}

	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) parseConstant() (Expr, error) {
	pos := p.pos()
	v, err := p.uint()
	if err != nil {
		return nil, err
	}
	w, err := p.width()
	if err != nil {
		return nil, err
	} else if v > bitmask(w) {
		return nil, errorAt(pos, "constant %d does not fit in %d bits", v, w)
	}
	return NewConstantExpr(v, w), nil
}

func (p *parser) parseRead() (Expr, error) {
	ul, err := p.parseUpdateList()
	if err != nil {
		return nil, err
	}
	index, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ReadExpr{Updates: ul, Index: index}, nil
}

// parseUpdateList parses an array name or a (store LIST INDEX VALUE) form.
func (p *parser) parseUpdateList() (UpdateList, error) {
	if p.tok == scanner.Ident {
		name := p.s.TokenText()
		a, ok := p.arrays[name]
		if !ok {
			return UpdateList{}, p.errorf("undeclared array: %s", name)
		}
		p.next()
		return NewUpdateList(a), nil
	}

	if err := p.expect('('); err != nil {
		return UpdateList{}, err
	}
	pos := p.pos()
	if kw, err := p.ident(); err != nil {
		return UpdateList{}, err
	} else if kw != "store" {
		return UpdateList{}, errorAt(pos, "expected store, found %s", kw)
	}

	ul, err := p.parseUpdateList()
	if err != nil {
		return UpdateList{}, err
	}
	index, err := p.parseExpr()
	if err != nil {
		return UpdateList{}, err
	}
	pos = p.pos()
	value, err := p.parseExpr()
	if err != nil {
		return UpdateList{}, err
	} else if w := ExprWidth(value); w != ul.Root.Range {
		return UpdateList{}, errorAt(pos, "store value width mismatch: %d != %d", w, ul.Root.Range)
	}

	if err := p.expect(')'); err != nil {
		return UpdateList{}, err
	}
	return UpdateList{Root: ul.Root, Head: NewArrayUpdate(index, value, ul.Head)}, nil
}

func (p *parser) parseConcat() (Expr, error) {
	msb, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	lsb, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ConcatExpr{MSB: msb, LSB: lsb}, nil
}

func (p *parser) parseExtract() (Expr, error) {
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	pos := p.pos()
	offset, err := p.uint()
	if err != nil {
		return nil, err
	}
	width, err := p.width()
	if err != nil {
		return nil, err
	} else if offset+uint64(width) > uint64(ExprWidth(e)) {
		return nil, errorAt(pos, "extract out of bounds: %d+%d > %d", offset, width, ExprWidth(e))
	}
	return &ExtractExpr{Expr: e, Offset: uint(offset), Width: width}, nil
}

func (p *parser) parseCast(signed bool) (Expr, error) {
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	pos := p.pos()
	width, err := p.width()
	if err != nil {
		return nil, err
	} else if width < ExprWidth(src) {
		return nil, errorAt(pos, "cast narrows expression: %d < %d", width, ExprWidth(src))
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}, nil
}

func (p *parser) parseBinary(op BinaryOp, pos scanner.Position) (Expr, error) {
	lhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	} else if lw, rw := ExprWidth(lhs), ExprWidth(rhs); lw != rw {
		return nil, errorAt(pos, "%s: operand width mismatch: %d != %d", op, lw, rw)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}, nil
}
