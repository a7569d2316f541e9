//
//  Copyright © Manetu Inc. All rights reserved.
//

package planner

import "github.com/manetu/rego-rvm/pkg/core/ast"

// BindingKind tags a [BindingPlan] variant.
type BindingKind int

const (
	BindingAssignment BindingKind = iota
	BindingLoopIndex
	BindingParameter
	BindingSomeIn
)

// BindingPlan wraps the plan for one binding site, per spec.md §4.1.
type BindingPlan struct {
	Kind BindingKind

	Assignment *AssignmentPlan // BindingAssignment

	LoopVar string // BindingLoopIndex

	ParamName string // BindingParameter

	// BindingSomeIn
	CollectionExpr *ast.Term
	KeyPlan        *DestructuringPlan
	ValuePlan      *DestructuringPlan
}

// PlanSomeIn builds the BindingPlan for `some k?, v in collection`. Key
// and value overlay variables shadow ancestor names (spec.md §4.1).
func PlanSomeIn(keyName, valName string, collection *ast.Term, scope *Scope) (*BindingPlan, error) {
	var keyPlan *DestructuringPlan
	if keyName != "" {
		scope.Bind(keyName)
		keyPlan = &DestructuringPlan{Kind: PlanVar, VarName: keyName}
	}
	scope.Bind(valName)
	valPlan := &DestructuringPlan{Kind: PlanVar, VarName: valName}

	return &BindingPlan{
		Kind:           BindingSomeIn,
		CollectionExpr: collection,
		KeyPlan:        keyPlan,
		ValuePlan:      valPlan,
	}, nil
}

// PlanParameter builds the BindingPlan for one function parameter name.
func PlanParameter(name string, scope *Scope) *BindingPlan {
	scope.Bind(name)
	return &BindingPlan{Kind: BindingParameter, ParamName: name}
}

// PlanLoopIndex builds the BindingPlan for a hoisted loop index variable
// introduced by the scheduler (spec.md §4.2) for an `x := c[_]`-style
// wildcard index.
func PlanLoopIndex(name string, scope *Scope) *BindingPlan {
	scope.Bind(name)
	return &BindingPlan{Kind: BindingLoopIndex, LoopVar: name}
}
