//
//  Copyright © Manetu Inc. All rights reserved.
//

package planner

import (
	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// PlanKind tags a [DestructuringPlan] variant.
type PlanKind int

const (
	PlanVar PlanKind = iota
	PlanIgnore
	PlanEqualityToExpr
	PlanEqualityToLiteral
	PlanArray
	PlanObject
)

// ObjectKeyPlan pairs a statically-known literal key with the plan for
// its value.
type ObjectKeyPlan struct {
	Key  value.Value
	Plan *DestructuringPlan
}

// DynamicKeyPlan pairs a runtime-computed key expression with the plan
// for its value.
type DynamicKeyPlan struct {
	KeyExpr *ast.Term
	Plan    *DestructuringPlan
}

// DestructuringPlan is the static description of one binding (sub-)site,
// per spec.md §4.1.
type DestructuringPlan struct {
	Kind PlanKind

	VarName string // PlanVar

	Expr *ast.Term // PlanEqualityToExpr

	Literal value.Value // PlanEqualityToLiteral

	Elems []*DestructuringPlan // PlanArray

	LiteralKeys []ObjectKeyPlan // PlanObject
	DynamicKeys []DynamicKeyPlan
}

// literalValue returns the constant Value a Term denotes and true, if the
// term is a compile-time literal (null/bool/number/string), for use as an
// EqualityToLiteral or structural-match target.
func literalValue(t *ast.Term) (value.Value, bool) {
	switch t.Kind {
	case ast.TermNull:
		return value.Null(), true
	case ast.TermBool:
		return value.NewBool(t.Bool), true
	case ast.TermNumber:
		if t.IsInt {
			return value.NewInt(t.Int), true
		}
		return value.NewFloat(t.Float), true
	case ast.TermString:
		return value.NewString(t.Str), true
	default:
		return value.Undefined(), false
	}
}

// Plan builds a [DestructuringPlan] for pattern in the given scope and
// mode, per spec.md §4.1.
func Plan(pattern *ast.Term, scope *Scope, mode ScopeMode) (*DestructuringPlan, error) {
	switch pattern.Kind {
	case ast.TermWildcard:
		return &DestructuringPlan{Kind: PlanIgnore}, nil

	case ast.TermVar:
		name := pattern.Var
		if mode == AllowShadowing && scope.HasSameScopeBinding(name) {
			return nil, errVariableRedefined(name, pattern.Span)
		}
		if scope.IsVarUnbound(name, mode) {
			scope.Bind(name)
			return &DestructuringPlan{Kind: PlanVar, VarName: name}, nil
		}
		return &DestructuringPlan{Kind: PlanEqualityToExpr, Expr: pattern}, nil

	case ast.TermNull, ast.TermBool, ast.TermNumber, ast.TermString:
		lit, _ := literalValue(pattern)
		return &DestructuringPlan{Kind: PlanEqualityToLiteral, Literal: lit}, nil

	case ast.TermArray:
		elems := make([]*DestructuringPlan, len(pattern.Array))
		for i, e := range pattern.Array {
			ep, err := Plan(e, scope, mode)
			if err != nil {
				return nil, err
			}
			elems[i] = ep
		}
		return &DestructuringPlan{Kind: PlanArray, Elems: elems}, nil

	case ast.TermObject:
		p := &DestructuringPlan{Kind: PlanObject}
		for i, k := range pattern.ObjKeys {
			vp, err := Plan(pattern.ObjVals[i], scope, mode)
			if err != nil {
				return nil, err
			}
			if lit, ok := literalValue(k); ok {
				p.LiteralKeys = append(p.LiteralKeys, ObjectKeyPlan{Key: lit, Plan: vp})
			} else {
				p.DynamicKeys = append(p.DynamicKeys, DynamicKeyPlan{KeyExpr: k, Plan: vp})
			}
		}
		return p, nil

	default:
		// A reference, call, or computed expression used in pattern
		// position is an equality check against its runtime value.
		return &DestructuringPlan{Kind: PlanEqualityToExpr, Expr: pattern}, nil
	}
}

// StructuralShape compares the lengths of pattern and candidate when both
// are array terms, for the compile-time half of spec.md §4.1's
// StructuralMismatch check: mismatch is true when the lengths differ.
// Elements are not examined. ok is false when either term is not an
// array, so the shapes cannot be compared statically (deferred to a
// runtime length assertion).
func StructuralShape(pattern, candidate *ast.Term) (mismatch bool, ok bool) {
	if pattern.Kind != ast.TermArray || candidate.Kind != ast.TermArray {
		return false, false
	}
	return len(pattern.Array) != len(candidate.Array), true
}

func errStructuralMismatch(span common.Span) *common.EngineError {
	return common.NewErrorf(common.CodeStructuralMismatch, "pattern shapes are structurally incompatible").At(span)
}

// CheckStructuralMatch validates pattern against a literal candidate
// array/object term known at compile time, returning a StructuralMismatch
// error when the shapes are statically provable to disagree.
func CheckStructuralMatch(pattern, candidate *ast.Term) error {
	if mismatch, ok := StructuralShape(pattern, candidate); ok && mismatch {
		return errStructuralMismatch(pattern.Span)
	}
	return nil
}
