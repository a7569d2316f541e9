//
//  Copyright © Manetu Inc. All rights reserved.
//

package planner

import (
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/stretchr/testify/assert"
)

func TestPlanVarBindsOnce(t *testing.T) {
	scope := NewScope(nil)
	p, err := Plan(&ast.Term{Kind: ast.TermVar, Var: "x"}, scope, AllowShadowing)
	assert.NoError(t, err)
	assert.Equal(t, PlanVar, p.Kind)
	assert.Equal(t, "x", p.VarName)
}

func TestColonEqualsRedefinitionFails(t *testing.T) {
	scope := NewScope(nil)
	scope.Bind("x")
	_, err := Plan(&ast.Term{Kind: ast.TermVar, Var: "x"}, scope, AllowShadowing)
	assert.Error(t, err)
}

func TestRespectParentTreatsAncestorAsBound(t *testing.T) {
	parent := NewScope(nil)
	parent.Bind("x")
	child := NewScope(parent)
	p, err := Plan(&ast.Term{Kind: ast.TermVar, Var: "x"}, child, RespectParent)
	assert.NoError(t, err)
	assert.Equal(t, PlanEqualityToExpr, p.Kind)
}

func TestAllowShadowingIgnoresAncestor(t *testing.T) {
	parent := NewScope(nil)
	parent.Bind("x")
	child := NewScope(parent)
	p, err := Plan(&ast.Term{Kind: ast.TermVar, Var: "x"}, child, AllowShadowing)
	assert.NoError(t, err)
	assert.Equal(t, PlanVar, p.Kind)
}

func TestArrayDestructuringPlan(t *testing.T) {
	scope := NewScope(nil)
	pattern := &ast.Term{Kind: ast.TermArray, Array: []*ast.Term{
		{Kind: ast.TermVar, Var: "a"},
		{Kind: ast.TermVar, Var: "b"},
	}}
	p, err := Plan(pattern, scope, AllowShadowing)
	assert.NoError(t, err)
	assert.Equal(t, PlanArray, p.Kind)
	assert.Len(t, p.Elems, 2)
	assert.Equal(t, "a", p.Elems[0].VarName)
	assert.Equal(t, "b", p.Elems[1].VarName)
}

func TestStructuralMismatchOnArrayLengths(t *testing.T) {
	pattern := &ast.Term{Kind: ast.TermArray, Array: []*ast.Term{
		{Kind: ast.TermVar, Var: "a"}, {Kind: ast.TermVar, Var: "b"},
	}}
	rhs := &ast.Term{Kind: ast.TermArray, Array: []*ast.Term{
		{Kind: ast.TermNumber, IsInt: true, Int: 1},
		{Kind: ast.TermNumber, IsInt: true, Int: 2},
		{Kind: ast.TermNumber, IsInt: true, Int: 3},
	}}
	scope := NewScope(nil)
	_, err := PlanColonEquals(pattern, rhs, scope)
	assert.Error(t, err)
}

func TestPlanEqualsBothSidesOrdering(t *testing.T) {
	scope := NewScope(nil)
	lhs := &ast.Term{Kind: ast.TermVar, Var: "x"}
	rhs := &ast.Term{Kind: ast.TermVar, Var: "y"}
	ap, err := PlanEquals(lhs, rhs, scope)
	assert.NoError(t, err)
	assert.Equal(t, AssignEqualsBothSides, ap.Kind)
	assert.Len(t, ap.Pairs, 2)
}
