//
//  Copyright © Manetu Inc. All rights reserved.
//

package compiler

import (
	"testing"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	m, err := ast.Parse("test.rego", src, ast.ParserOptions{})
	require.NoError(t, err)
	return m
}

// Scenario 1 (spec.md §8): a simple allow rule with a default, merged
// with its body rule into one entry point.
func TestCompileSimpleAllowRuleWithDefault(t *testing.T) {
	src := `package demo

default allow = false

allow if {
	input.user == "alice"
}
`
	m := parseModule(t, src)
	prog, err := Compile([]*ast.Module{m}, nil, []string{"data.demo.allow"})
	require.NoError(t, err)

	pc, ok := prog.EntryPoints["data.demo.allow"]
	assert.True(t, ok)
	assert.Equal(t, int32(0), pc)

	// Only one RuleInfo/entry point should exist for "allow" — the
	// default and the body rule are merged, not registered twice.
	count := 0
	for _, ri := range prog.RuleInfos {
		if ri.Path == "data.demo.allow" {
			count++
			assert.True(t, ri.HasDefault)
			assert.False(t, ri.DefaultValue.Bool())
		}
	}
	assert.Equal(t, 1, count)
}

// Scenario 2 (spec.md §8): a partial-set rule with an implicit
// wildcard-index loop hoisted by the scheduler.
func TestCompilePartialSetRuleHoistsWildcardLoop(t *testing.T) {
	src := `package demo

big_items contains x if {
	x := input.items[_]
	x > 2
}
`
	m := parseModule(t, src)
	prog, err := Compile([]*ast.Module{m}, nil, []string{"data.demo.big_items"})
	require.NoError(t, err)

	assert.Contains(t, prog.EntryPoints, "data.demo.big_items")
	assert.NotEmpty(t, prog.Data.LoopStarts)

	found := false
	for _, r := range prog.RuleInfos {
		if r.Path == "data.demo.big_items" && r.IsPartialSet {
			found = true
		}
	}
	assert.True(t, found)
}

// Scenario 3 (spec.md §8): array destructuring in a rule body.
func TestCompileArrayDestructuring(t *testing.T) {
	src := `package demo

first_two_equal if {
	[a, b] := input.pair
	a == b
}
`
	m := parseModule(t, src)
	prog, err := Compile([]*ast.Module{m}, nil, []string{"data.demo.first_two_equal"})
	require.NoError(t, err)
	assert.Contains(t, prog.EntryPoints, "data.demo.first_two_equal")
}

// Scenario 5 (spec.md §8): a rule path that collides with the
// externally supplied data document is rejected at compile time.
func TestCompileRejectsRuleDataConflict(t *testing.T) {
	src := `package demo

allow if {
	input.user == "alice"
}
`
	m := parseModule(t, src)
	dataJSON := []byte(`{"demo": {"allow": true}}`)
	_, err := Compile([]*ast.Module{m}, dataJSON, []string{"data.demo.allow"})
	require.Error(t, err)

	ee, ok := err.(*common.EngineError)
	if ok {
		assert.Equal(t, common.CodeRuleDataConflict, ee.Code)
	}
}

func TestCompileEmptyModuleProducesNoEntryPoints(t *testing.T) {
	m := parseModule(t, "package demo\n")
	prog, err := Compile([]*ast.Module{m}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, prog.EntryOrder)
}
