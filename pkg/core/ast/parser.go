//
//  Copyright © Manetu Inc. All rights reserved.
//

package ast

import (
	"strconv"
	"strings"

	"github.com/manetu/rego-rvm/pkg/common"
)

// ParserOptions mirrors the shape of the teacher's ast.ParserOptions
// (RegoVersion), kept for call-site symmetry even though this parser
// only implements the v1-style `if`/`contains` surface described in
// SPEC_FULL.md §4.3.
type ParserOptions struct {
	RegoV0 bool
}

// Parse parses a single Rego module's source text into a [Module].
func Parse(file, src string, _ ParserOptions) (*Module, error) {
	p := &parser{lex: newLexer(file, src), file: file}
	p.advance()
	return p.parseModule()
}

type parser struct {
	lex  *lexer
	file string
	cur  token
	prev token
}

func (p *parser) span() common.Span {
	return common.Span{File: p.file, Line: p.cur.line, Col: p.cur.col}
}

func (p *parser) advance() {
	p.prev = p.cur
	p.cur = p.lex.next()
}

func (p *parser) errf(format string, args ...interface{}) error {
	return common.NewErrorf(common.CodeParseError, format, args...).At(p.span())
}

func (p *parser) isPunct(s string) bool { return p.cur.kind == tokPunct && p.cur.text == s }
func (p *parser) isIdent(s string) bool { return p.cur.kind == tokIdent && p.cur.text == s }

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return p.errf("expected %q, got %q", s, p.cur.text)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	if p.cur.kind != tokIdent {
		return "", p.errf("expected identifier, got %q", p.cur.text)
	}
	s := p.cur.text
	p.advance()
	return s, nil
}

func (p *parser) parseModule() (*Module, error) {
	m := &Module{File: p.file}

	if !p.isIdent("package") {
		return nil, p.errf("expected 'package' declaration, got %q", p.cur.text)
	}
	p.advance()
	pkg, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	m.Package = pkg

	for p.isIdent("import") {
		// Imports are accepted and ignored: the only import this spec's
		// subset cares about (rego.v1) has no semantic effect here since
		// the parser only ever implements the v1-style surface.
		p.advance()
		if _, err := p.parseDottedPath(); err != nil {
			return nil, err
		}
		if p.isIdent("as") {
			p.advance()
			if _, err := p.expectIdent(); err != nil {
				return nil, err
			}
		}
	}

	for p.cur.kind != tokEOF {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, rule)
	}

	return m, nil
}

func (p *parser) parseDottedPath() (string, error) {
	var parts []string
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	parts = append(parts, first)
	for p.isPunct(".") {
		p.advance()
		next, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		parts = append(parts, next)
	}
	return strings.Join(parts, "."), nil
}

// parseRule parses one `default`, complete, partial-set, partial-object,
// or function rule definition.
func (p *parser) parseRule() (*Rule, error) {
	span := p.span()

	if p.isIdent("default") {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Rule{Name: name, Kind: RuleComplete, IsDefault: true, DefaultValue: val, Span: span}, nil
	}

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	r := &Rule{Name: name, Kind: RuleComplete, Span: span}

	// Function params: name(a, b)
	if p.isPunct("(") {
		p.advance()
		for !p.isPunct(")") {
			param, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			r.Params = append(r.Params, param)
			if p.isPunct(",") {
				p.advance()
			}
		}
		p.advance() // ')'
		r.Kind = RuleFunction
	}

	// Partial object key: name[key]
	if p.isPunct("[") {
		p.advance()
		key, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		r.Key = key
		r.Kind = RulePartialObject
	}

	if p.isIdent("contains") {
		p.advance()
		elem, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		r.Key = elem
		r.Kind = RulePartialSet
	} else if p.isPunct(":=") || p.isPunct("=") {
		p.advance()
		val, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		r.Value = val
	}

	if p.isIdent("if") {
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		r.Body = body
	} else if p.isPunct("{") {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}

	return r, nil
}

func (p *parser) parseBlock() (*Body, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	b := &Body{}
	for !p.isPunct("}") {
		stmtLine := p.cur.line
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
		if p.isPunct(";") {
			p.advance()
			continue
		}
		if p.isPunct("}") {
			break
		}
		if p.cur.line <= stmtLine {
			return nil, p.errf("expected ';' or newline between statements, got %q", p.cur.text)
		}
	}
	p.advance() // '}'
	return b, nil
}

func (p *parser) parseStmt() (*Stmt, error) {
	span := p.span()

	if p.isIdent("some") {
		p.advance()
		first, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		key, val := "", first
		if p.isPunct(",") {
			p.advance()
			val, err = p.expectIdent()
			if err != nil {
				return nil, err
			}
			key = first
		}
		if err := p.expectIdentWord("in"); err != nil {
			return nil, err
		}
		coll, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Stmt{Kind: StmtSomeIn, SomeKey: key, SomeVal: val, SomeColl: coll, Span: span}, nil
	}

	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	if p.isPunct(":=") {
		p.advance()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Stmt{Kind: StmtColonEq, Pattern: lhs, Rhs: rhs, Span: span}, nil
	}
	if p.isPunct("=") {
		p.advance()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Stmt{Kind: StmtEq, Pattern: lhs, Rhs: rhs, Span: span}, nil
	}

	return &Stmt{Kind: StmtExpr, Expr: lhs, Span: span}, nil
}

func (p *parser) expectIdentWord(word string) error {
	if !p.isIdent(word) {
		return p.errf("expected %q, got %q", word, p.cur.text)
	}
	p.advance()
	return nil
}

// Operator precedence, lowest first.
var precedence = map[string]int{
	"or": 1, "||": 1,
	"and": 2, "&&": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

func (p *parser) tokenOp() (string, bool) {
	if p.cur.kind == tokIdent && (p.cur.text == "and" || p.cur.text == "or") {
		return p.cur.text, true
	}
	if p.cur.kind == tokPunct {
		switch p.cur.text {
		case "==", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/", "%", "&&", "||":
			return p.cur.text, true
		}
	}
	return "", false
}

func (p *parser) parseTerm() (*Term, error) { return p.parseBinary(0) }

func (p *parser) parseBinary(minPrec int) (*Term, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.tokenOp()
		if !ok || precedence[op] < minPrec {
			return lhs, nil
		}
		span := p.span()
		p.advance()
		rhs, err := p.parseBinary(precedence[op] + 1)
		if err != nil {
			return nil, err
		}
		lhs = &Term{Kind: TermBinary, Op: op, Lhs: lhs, Rhs: rhs, Span: span}
	}
}

func (p *parser) parseUnary() (*Term, error) {
	if p.isIdent("not") {
		span := p.span()
		p.advance()
		t, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Term{Kind: TermNot, Rhs: t, Span: span}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (*Term, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isPunct(".") || p.isPunct("[") {
		if p.isPunct(".") {
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			base = &Term{Kind: TermRef, Base: base, Keys: []*Term{{Kind: TermString, Str: name}}}
			continue
		}
		p.advance() // '['
		var key *Term
		if p.isPunct("_") || (p.cur.kind == tokIdent && p.cur.text == "_") {
			key = &Term{Kind: TermWildcard}
			p.advance()
		} else {
			key, err = p.parseTerm()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		base = &Term{Kind: TermRef, Base: base, Keys: []*Term{key}}
	}
	return base, nil
}

func (p *parser) parsePrimary() (*Term, error) {
	span := p.span()
	switch {
	case p.cur.kind == tokNumber:
		s := p.cur.text
		p.advance()
		if strings.Contains(s, ".") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, p.errf("invalid number %q", s)
			}
			return &Term{Kind: TermNumber, Float: f, Span: span}, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, p.errf("invalid number %q", s)
		}
		return &Term{Kind: TermNumber, IsInt: true, Int: i, Span: span}, nil

	case p.cur.kind == tokString:
		s := p.cur.text
		p.advance()
		return &Term{Kind: TermString, Str: s, Span: span}, nil

	case p.isPunct("("):
		p.advance()
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return t, nil

	case p.isPunct("["):
		p.advance()
		var elems []*Term
		for !p.isPunct("]") {
			e, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.isPunct(",") {
				p.advance()
			}
		}
		p.advance()
		return &Term{Kind: TermArray, Array: elems, Span: span}, nil

	case p.isPunct("{"):
		p.advance()
		var keys, vals []*Term
		for !p.isPunct("}") {
			k, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			v, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			vals = append(vals, v)
			if p.isPunct(",") {
				p.advance()
			}
		}
		p.advance()
		return &Term{Kind: TermObject, ObjKeys: keys, ObjVals: vals, Span: span}, nil

	case p.cur.kind == tokIdent:
		switch p.cur.text {
		case "true":
			p.advance()
			return &Term{Kind: TermBool, Bool: true, Span: span}, nil
		case "false":
			p.advance()
			return &Term{Kind: TermBool, Bool: false, Span: span}, nil
		case "null":
			p.advance()
			return &Term{Kind: TermNull, Span: span}, nil
		case "input":
			p.advance()
			return &Term{Kind: TermInput, Span: span}, nil
		case "data":
			p.advance()
			return &Term{Kind: TermData, Span: span}, nil
		case "_":
			p.advance()
			return &Term{Kind: TermWildcard, Span: span}, nil
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.isPunct("(") {
			p.advance()
			var args []*Term
			for !p.isPunct(")") {
				a, err := p.parseTerm()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.isPunct(",") {
					p.advance()
				}
			}
			p.advance()
			return &Term{Kind: TermCall, CallName: name, Args: args, Span: span}, nil
		}
		return &Term{Kind: TermVar, Var: name, Span: span}, nil

	default:
		return nil, p.errf("unexpected token %q", p.cur.text)
	}
}
