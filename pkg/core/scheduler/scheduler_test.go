//
//  Copyright © Manetu Inc. All rights reserved.
//

package scheduler

import (
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/stretchr/testify/assert"
)

func varTerm(name string) *ast.Term { return &ast.Term{Kind: ast.TermVar, Var: name} }

func TestScheduleOrdersByDependency(t *testing.T) {
	// y := x + 1 ; x := 2   =>  x must run before y
	body := &ast.Body{Stmts: []*ast.Stmt{
		{Kind: ast.StmtColonEq, Pattern: varTerm("y"), Rhs: &ast.Term{Kind: ast.TermBinary, Op: "+", Lhs: varTerm("x"), Rhs: &ast.Term{Kind: ast.TermNumber, IsInt: true, Int: 1}}},
		{Kind: ast.StmtColonEq, Pattern: varTerm("x"), Rhs: &ast.Term{Kind: ast.TermNumber, IsInt: true, Int: 2}},
	}}
	sched, err := Schedule(body)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 0}, sched.Order)
}

func TestScheduleDetectsCycle(t *testing.T) {
	// x = y ; y = x  (both sides introduce a mutual read -> cycle)
	body := &ast.Body{Stmts: []*ast.Stmt{
		{Kind: ast.StmtEq, Pattern: varTerm("x"), Rhs: varTerm("y")},
		{Kind: ast.StmtEq, Pattern: varTerm("y"), Rhs: varTerm("x")},
	}}
	_, err := Schedule(body)
	assert.Error(t, err)
}

func TestScheduleHoistsWildcardIndex(t *testing.T) {
	// x := input.items[_] ; x > 2
	items := &ast.Term{Kind: ast.TermRef, Base: &ast.Term{Kind: ast.TermInput}, Keys: []*ast.Term{{Kind: ast.TermString, Str: "items"}}}
	wildcardRef := &ast.Term{Kind: ast.TermRef, Base: items, Keys: []*ast.Term{{Kind: ast.TermWildcard}}}
	body := &ast.Body{Stmts: []*ast.Stmt{
		{Kind: ast.StmtColonEq, Pattern: varTerm("x"), Rhs: wildcardRef},
		{Kind: ast.StmtExpr, Expr: &ast.Term{Kind: ast.TermBinary, Op: ">", Lhs: varTerm("x"), Rhs: &ast.Term{Kind: ast.TermNumber, IsInt: true, Int: 2}}},
	}}
	sched, err := Schedule(body)
	assert.NoError(t, err)
	assert.Len(t, sched.Hoists, 1)
	assert.Equal(t, "x", sched.Hoists[0].BindVar)
	assert.Equal(t, 0, sched.Hoists[0].FromStmt)
}

func TestScheduleIndependentStatementsPreserveSourceOrder(t *testing.T) {
	body := &ast.Body{Stmts: []*ast.Stmt{
		{Kind: ast.StmtColonEq, Pattern: varTerm("a"), Rhs: &ast.Term{Kind: ast.TermNumber, IsInt: true, Int: 1}},
		{Kind: ast.StmtColonEq, Pattern: varTerm("b"), Rhs: &ast.Term{Kind: ast.TermNumber, IsInt: true, Int: 2}},
	}}
	sched, err := Schedule(body)
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1}, sched.Order)
}
