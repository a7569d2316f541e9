//
//  Copyright © Manetu Inc. All rights reserved.
//

package planner

import (
	"sort"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
)

// AssignKind tags an [AssignmentPlan] variant.
type AssignKind int

const (
	AssignColonEquals AssignKind = iota
	AssignEqualsBindLeft
	AssignEqualsBindRight
	AssignEqualsBothSides
	AssignEqualityCheck
	AssignWildcard
)

// EqualityPair is one (value expression, destructuring plan) pair within
// an AssignEqualsBothSides plan, ordered per spec.md §4.1's dependency
// rule.
type EqualityPair struct {
	ValueExpr *ast.Term
	Plan      *DestructuringPlan
}

// AssignmentPlan is the static plan for one `=`/`:=` statement, per
// spec.md §4.1.
type AssignmentPlan struct {
	Kind AssignKind

	LhsPlan *DestructuringPlan // ColonEquals, BindLeft
	RhsExpr *ast.Term          // ColonEquals, BindLeft, EqualityCheck

	LhsExpr *ast.Term          // BindRight, EqualityCheck
	RhsPlan *DestructuringPlan // BindRight

	Pairs []EqualityPair // BothSides
}

// freeVars collects the unbound-pattern variable names a term would
// introduce if planned under AllowShadowing against scope, without
// mutating scope.
func freeVars(t *ast.Term, scope *Scope) map[string]bool {
	out := make(map[string]bool)
	var walk func(t *ast.Term)
	walk = func(t *ast.Term) {
		if t == nil {
			return
		}
		switch t.Kind {
		case ast.TermVar:
			if scope.IsVarUnbound(t.Var, AllowShadowing) {
				out[t.Var] = true
			}
		case ast.TermArray:
			for _, e := range t.Array {
				walk(e)
			}
		case ast.TermObject:
			for _, v := range t.ObjVals {
				walk(v)
			}
		}
	}
	walk(t)
	return out
}

// PlanColonEquals builds the plan for a `pattern := expr` statement. The
// LHS is always planned under AllowShadowing (spec.md §4.1).
func PlanColonEquals(pattern, rhs *ast.Term, scope *Scope) (*AssignmentPlan, error) {
	lhsPlan, err := Plan(pattern, scope, AllowShadowing)
	if err != nil {
		return nil, err
	}
	if mismatch, ok := StructuralShape(pattern, rhs); ok && mismatch {
		return nil, errStructuralMismatch(pattern.Span)
	}
	return &AssignmentPlan{Kind: AssignColonEquals, LhsPlan: lhsPlan, RhsExpr: rhs}, nil
}

// PlanEquals builds the plan for a `lhs = rhs` statement, choosing among
// BindLeft/BindRight/BothSides/EqualityCheck/Wildcard by which side
// introduces free pattern variables, per spec.md §4.1.
func PlanEquals(lhs, rhs *ast.Term, scope *Scope) (*AssignmentPlan, error) {
	if lhs.Kind == ast.TermWildcard && rhs.Kind == ast.TermWildcard {
		return &AssignmentPlan{Kind: AssignWildcard}, nil
	}

	lhsFree := freeVars(lhs, scope)
	rhsFree := freeVars(rhs, scope)

	switch {
	case len(lhsFree) > 0 && len(rhsFree) == 0:
		lhsPlan, err := Plan(lhs, scope, RespectParent)
		if err != nil {
			return nil, err
		}
		return &AssignmentPlan{Kind: AssignEqualsBindLeft, LhsPlan: lhsPlan, RhsExpr: rhs}, nil

	case len(rhsFree) > 0 && len(lhsFree) == 0:
		rhsPlan, err := Plan(rhs, scope, RespectParent)
		if err != nil {
			return nil, err
		}
		return &AssignmentPlan{Kind: AssignEqualsBindRight, LhsExpr: lhs, RhsPlan: rhsPlan}, nil

	case len(lhsFree) > 0 && len(rhsFree) > 0:
		lhsPlan, err := Plan(lhs, scope, RespectParent)
		if err != nil {
			return nil, err
		}
		rhsPlan, err := Plan(rhs, scope, RespectParent)
		if err != nil {
			return nil, err
		}
		pairs := []EqualityPair{{ValueExpr: rhs, Plan: lhsPlan}, {ValueExpr: lhs, Plan: rhsPlan}}
		ordered, err := orderByDependency(pairs)
		if err != nil {
			return nil, err
		}
		return &AssignmentPlan{Kind: AssignEqualsBothSides, Pairs: ordered}, nil

	default:
		return &AssignmentPlan{Kind: AssignEqualityCheck, LhsExpr: lhs, RhsExpr: rhs}, nil
	}
}

// planBoundVars returns the set of variable names a plan introduces.
func planBoundVars(p *DestructuringPlan, out map[string]bool) {
	if p == nil {
		return
	}
	switch p.Kind {
	case PlanVar:
		out[p.VarName] = true
	case PlanArray:
		for _, e := range p.Elems {
			planBoundVars(e, out)
		}
	case PlanObject:
		for _, k := range p.LiteralKeys {
			planBoundVars(k.Plan, out)
		}
		for _, k := range p.DynamicKeys {
			planBoundVars(k.Plan, out)
		}
	}
}

// exprReadsAny reports whether t references any variable name in names.
func exprReadsAny(t *ast.Term, names map[string]bool) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case ast.TermVar:
		return names[t.Var]
	case ast.TermArray:
		for _, e := range t.Array {
			if exprReadsAny(e, names) {
				return true
			}
		}
	case ast.TermObject:
		for _, v := range t.ObjVals {
			if exprReadsAny(v, names) {
				return true
			}
		}
	case ast.TermRef:
		if exprReadsAny(t.Base, names) {
			return true
		}
		for _, k := range t.Keys {
			if exprReadsAny(k, names) {
				return true
			}
		}
	case ast.TermCall:
		for _, a := range t.Args {
			if exprReadsAny(a, names) {
				return true
			}
		}
	case ast.TermBinary:
		return exprReadsAny(t.Lhs, names) || exprReadsAny(t.Rhs, names)
	case ast.TermNot:
		return exprReadsAny(t.Rhs, names)
	}
	return false
}

// orderByDependency topologically sorts pairs so that a pair whose
// bound variables are read by another pair's expression comes first,
// tie-breaking by source order for determinism, per spec.md §4.1. A
// cycle is a structural-mismatch failure.
func orderByDependency(pairs []EqualityPair) ([]EqualityPair, error) {
	n := len(pairs)
	bound := make([]map[string]bool, n)
	for i, p := range pairs {
		bound[i] = make(map[string]bool)
		planBoundVars(p.Plan, bound[i])
	}

	edges := make([][]int, n) // edges[a] = []int{b...} meaning a before b
	indeg := make([]int, n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if a == b {
				continue
			}
			if exprReadsAny(pairs[b].ValueExpr, bound[a]) {
				edges[a] = append(edges[a], b)
				indeg[b]++
			}
		}
	}

	var order []int
	visited := make([]bool, n)
	for len(order) < n {
		progressed := false
		candidates := make([]int, 0)
		for i := 0; i < n; i++ {
			if !visited[i] && indeg[i] == 0 {
				candidates = append(candidates, i)
			}
		}
		sort.Ints(candidates)
		for _, i := range candidates {
			visited[i] = true
			order = append(order, i)
			for _, b := range edges[i] {
				indeg[b]--
			}
			progressed = true
		}
		if !progressed {
			return nil, common.NewErrorf(common.CodeStructuralMismatch, "cyclic dependency among equality pair bindings")
		}
	}

	out := make([]EqualityPair, n)
	for i, idx := range order {
		out[i] = pairs[idx]
	}
	return out, nil
}
