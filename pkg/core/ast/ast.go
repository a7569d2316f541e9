//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package ast defines the minimal module AST the compiler consumes.
//
// The real Rego parser and its full AST are declared out of scope by
// spec.md §1 ("consumed as input by the compiler"); this package defines
// just enough of a tree — and, in parser.go, just enough of a front end —
// to drive the compiler, destructuring planner, and scheduler against
// real Rego source text for tests and the CLI. Swapping in a complete
// Rego front end only requires producing this same [Module] shape.
package ast

import "github.com/manetu/rego-rvm/pkg/common"

// Module is a single parsed Rego source file.
type Module struct {
	File    string
	Package string // dotted path under data, e.g. "demo" for `package demo`
	Rules   []*Rule
}

// RuleKind classifies a rule head, per spec.md §4.3 edge cases.
type RuleKind int

const (
	RuleComplete RuleKind = iota
	RulePartialSet
	RulePartialObject
	RuleFunction
)

// Rule is one rule definition (one of possibly several bodies sharing a
// name — each source occurrence of `name { ... }` is its own *Rule; the
// compiler groups same-named rules together).
type Rule struct {
	Name   string
	Kind   RuleKind
	Params []string // function parameter names, RuleFunction only
	Key    *Term     // partial-object key term, or partial-set element term
	Value  *Term     // complete/partial-object value term; nil means boolean `true`
	Body   *Body     // nil for a function declaration with no body (spec.md §4.3)
	IsDefault    bool
	DefaultValue *Term
	Span         common.Span
}

// Body is a rule body: a conjunction of statements, all of which must
// succeed for the body to produce a result.
type Body struct {
	Stmts []*Stmt
}

// StmtKind classifies a body statement.
type StmtKind int

const (
	StmtColonEq StmtKind = iota // pattern := expr
	StmtEq                      // lhs = rhs
	StmtSomeIn                  // some k?, v in collection
	StmtExpr                    // bare boolean expression
)

// Stmt is one statement of a rule body.
type Stmt struct {
	Kind StmtKind

	// StmtColonEq
	Pattern *Term
	Rhs     *Term

	// StmtEq reuses Pattern (lhs) and Rhs

	// StmtSomeIn
	SomeKey  string // "" if not bound
	SomeVal  string
	SomeColl *Term

	// StmtExpr
	Expr *Term

	Span common.Span
}

// TermKind classifies an expression node.
type TermKind int

const (
	TermNull TermKind = iota
	TermBool
	TermNumber
	TermString
	TermVar
	TermWildcard // `_`
	TermInput
	TermData
	TermArray
	TermObject
	TermRef    // Base indexed by Keys, e.g. input.user, c[i], data.pkg.rule
	TermCall   // CallName(Args...)
	TermBinary // Lhs Op Rhs
	TermNot    // not Rhs
)

// Term is an expression tree node. Not every field is meaningful for
// every Kind; see the Kind-specific comments above.
type Term struct {
	Kind TermKind

	Bool   bool
	IsInt  bool
	Int    int64
	Float  float64
	Str    string
	Var    string

	Array []*Term // TermArray elements

	ObjKeys []*Term // TermObject keys, parallel to ObjVals
	ObjVals []*Term

	Base *Term   // TermRef base
	Keys []*Term // TermRef index chain (each a Term; wildcard `_` allowed)

	CallName string
	Args     []*Term

	Op       string
	Lhs, Rhs *Term

	Span common.Span
}
