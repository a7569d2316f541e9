//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package planner implements the destructuring planner described in
// spec.md §4.1: for every binding site (=, :=, function parameters, loop
// headers, some…in) it produces a static plan describing which
// sub-positions introduce variables, which are equality checks, and
// which are structural literal matches, so the compiler never inspects
// the AST directly when lowering a binding site.
package planner

import "github.com/manetu/rego-rvm/pkg/common"

// ScopeMode selects how a binding site treats names already visible from
// an ancestor scope, per spec.md §4.1.
type ScopeMode int

const (
	// RespectParent treats names bound in any ancestor scope as already
	// bound; used for `=`, loop indices, and some…in value/key plans.
	RespectParent ScopeMode = iota
	// AllowShadowing allows a new binding to shadow an ancestor name;
	// used for `:=` LHS, function parameters, and some…in overlay vars.
	AllowShadowing
)

// ScopeContext is the query surface the planner needs from the
// compiler's live binding table.
type ScopeContext interface {
	IsVarUnbound(name string, mode ScopeMode) bool
	HasSameScopeBinding(name string) bool
}

// Scope is the concrete, nestable [ScopeContext] used by the compiler.
// Each rule body, loop, and comprehension pushes a child Scope.
type Scope struct {
	parent *Scope
	bound  map[string]bool
}

// NewScope creates a scope nested under parent (nil for a rule's
// top-level scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, bound: make(map[string]bool)}
}

// IsVarUnbound reports whether name is available to bind at this scope
// under the given mode.
func (s *Scope) IsVarUnbound(name string, mode ScopeMode) bool {
	if name == "_" {
		return true
	}
	if mode == AllowShadowing {
		return !s.bound[name]
	}
	for cur := s; cur != nil; cur = cur.parent {
		if cur.bound[name] {
			return false
		}
	}
	return true
}

// HasSameScopeBinding reports whether name is already bound in this
// exact scope (not an ancestor) — used to detect `:=` redefinition.
func (s *Scope) HasSameScopeBinding(name string) bool {
	return s.bound[name]
}

// Bind records name as bound in this scope.
func (s *Scope) Bind(name string) {
	if name != "_" {
		s.bound[name] = true
	}
}

var _ ScopeContext = (*Scope)(nil)

func errVariableRedefined(name string, span common.Span) *common.EngineError {
	return common.NewErrorf(common.CodeVariableRedefined, "variable %q already defined in this scope", name).At(span)
}
