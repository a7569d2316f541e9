//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package scheduler orders a rule body's statements by variable
// dependency and hoists loops for wildcard-indexed collection
// references, per spec.md §4.2.
//
// The scheduler runs before the destructuring planner (reversing
// spec.md §4.3 step 2's textual order, which lists the planner first):
// statement order must be fixed before the planner can track which
// names are already bound at each point, since the planner consults a
// live, order-dependent [planner.Scope]. The two components' contracts
// are otherwise exactly as spec.md describes them; only the pipeline
// wiring differs, and it produces the same lowered instructions either
// way — see DESIGN.md.
package scheduler

import (
	"sort"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
)

// HoistedLoop describes a loop the scheduler introduced because a
// statement referenced an unbound index variable as `c[_]` (spec.md
// §4.2): "for each occurrence of an unbound index variable x used as
// c[x], hoist a loop over c as the enclosing schedule step."
type HoistedLoop struct {
	Collection *ast.Term
	BindVar    string // "" if the wildcard result is not bound to a name
	FromStmt   int    // scheduled-order position; this stmt and all after it are the loop body
}

// Schedule is the result of scheduling one rule body.
type Schedule struct {
	Order  []int // indices into the original Body.Stmts, in execution order
	Hoists []HoistedLoop
}

// Schedule orders body's statements so every variable is bound before
// it is read, detects wildcard index hoists, and reports a
// CyclicDependency error when no valid order exists.
func Schedule(body *ast.Body) (*Schedule, error) {
	n := len(body.Stmts)
	binds := make([]map[string]bool, n)
	reads := make([]map[string]bool, n)

	for i, stmt := range body.Stmts {
		b, r := bindsAndReads(stmt)
		binds[i] = b
		reads[i] = r
	}

	indeg := make([]int, n)
	edges := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if readsFromBinds(reads[j], binds[i]) {
				edges[i] = append(edges[i], j)
				indeg[j]++
			}
		}
	}

	var order []int
	visited := make([]bool, n)
	for len(order) < n {
		var ready []int
		for i := 0; i < n; i++ {
			if !visited[i] && indeg[i] == 0 {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			return nil, common.NewErrorf(common.CodeCyclicDependency, "unable to schedule rule body: cyclic variable dependency")
		}
		sort.Ints(ready)
		for _, i := range ready {
			visited[i] = true
			order = append(order, i)
			for _, j := range edges[i] {
				indeg[j]--
			}
		}
	}

	s := &Schedule{Order: order}
	boundSoFar := make(map[string]bool)
	for pos, idx := range order {
		stmt := body.Stmts[idx]
		if loop, bindVar, ok := wildcardHoist(stmt, boundSoFar); ok {
			s.Hoists = append(s.Hoists, HoistedLoop{Collection: loop, BindVar: bindVar, FromStmt: pos})
		}
		for k := range binds[idx] {
			boundSoFar[k] = true
		}
	}

	return s, nil
}

func readsFromBinds(reads, binds map[string]bool) bool {
	for k := range reads {
		if binds[k] {
			return true
		}
	}
	return false
}

func bindsAndReads(stmt *ast.Stmt) (binds, reads map[string]bool) {
	binds = make(map[string]bool)
	reads = make(map[string]bool)
	switch stmt.Kind {
	case ast.StmtColonEq:
		collectVars(stmt.Pattern, binds)
		collectVars(stmt.Rhs, reads)
	case ast.StmtEq:
		collectVars(stmt.Pattern, binds)
		collectVars(stmt.Rhs, reads)
	case ast.StmtSomeIn:
		if stmt.SomeKey != "" {
			binds[stmt.SomeKey] = true
		}
		binds[stmt.SomeVal] = true
		collectVars(stmt.SomeColl, reads)
	case ast.StmtExpr:
		collectVars(stmt.Expr, reads)
	}
	for k := range binds {
		delete(reads, k)
	}
	return binds, reads
}

func collectVars(t *ast.Term, out map[string]bool) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.TermVar:
		out[t.Var] = true
	case ast.TermArray:
		for _, e := range t.Array {
			collectVars(e, out)
		}
	case ast.TermObject:
		for _, v := range t.ObjVals {
			collectVars(v, out)
		}
		for _, k := range t.ObjKeys {
			collectVars(k, out)
		}
	case ast.TermRef:
		collectVars(t.Base, out)
		for _, k := range t.Keys {
			if k.Kind == ast.TermWildcard {
				continue
			}
			collectVars(k, out)
		}
	case ast.TermCall:
		for _, a := range t.Args {
			collectVars(a, out)
		}
	case ast.TermBinary:
		collectVars(t.Lhs, out)
		collectVars(t.Rhs, out)
	case ast.TermNot:
		collectVars(t.Rhs, out)
	}
}

// wildcardHoist detects a statement whose right-hand expression
// contains a top-level `c[_]` reference (a collection indexed by a
// wildcard), returning the collection term and the name the iteration
// value binds to, if any.
func wildcardHoist(stmt *ast.Stmt, _ map[string]bool) (*ast.Term, string, bool) {
	var expr *ast.Term
	bindVar := ""
	switch stmt.Kind {
	case ast.StmtColonEq:
		expr = stmt.Rhs
		if stmt.Pattern.Kind == ast.TermVar {
			bindVar = stmt.Pattern.Var
		}
	case ast.StmtExpr:
		expr = stmt.Expr
	default:
		return nil, "", false
	}
	if coll, ok := findWildcardRef(expr); ok {
		return coll, bindVar, true
	}
	return nil, "", false
}

func findWildcardRef(t *ast.Term) (*ast.Term, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind == ast.TermRef && len(t.Keys) == 1 && t.Keys[0].Kind == ast.TermWildcard {
		return t.Base, true
	}
	if t.Kind == ast.TermRef {
		return findWildcardRef(t.Base)
	}
	return nil, false
}
