//
//  Copyright © Manetu Inc. All rights reserved.
//

package program

import (
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/stretchr/testify/assert"
)

func sampleProgram() *Program {
	p := New()
	p.Instructions = []isa.Instruction{
		{Op: isa.OpLoadTrue, A: 0},
		{Op: isa.OpHalt},
	}
	p.Literals = []value.Value{value.NewString("alice"), value.NewInt(3)}
	p.EntryOrder = []string{"data.demo.allow"}
	p.EntryPoints["data.demo.allow"] = 0
	p.Sources = []Source{{ID: "s0", File: "demo.rego", Content: "package demo"}}
	p.RuleInfos = []RuleInfo{{
		Path: "data.demo.allow", ResultRegister: 0, RegisterWindowSize: 1,
		DefaultValue: value.NewBool(false), HasDefault: true,
		DestructuringBlockStart: -1, BodyPCs: []int32{0, 1}, IsComplete: true,
	}}
	p.BuiltinInfoTable = []BuiltinInfo{{Name: "count", Arity: 1}}
	p.RuleTree = value.NewObject([2]value.Value{value.NewString("demo"), value.NewObject(
		[2]value.Value{value.NewString("allow"), value.NewBool(true)},
	)})
	p.Metadata = Metadata{CompilerVersion: "rego-rvm-test", RegoV0: true}
	p.MaxRuleWindowSize = 1
	p.Data.ArrayCreates = []isa.ArrayCreateParams{{Dest: 0, Elements: []int32{1, 2}}}
	return p
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	p := sampleProgram()
	bin, err := p.SerializeBinary()
	assert.NoError(t, err)

	got, isPartial, _, err := DeserializeBinary(bin)
	assert.NoError(t, err)
	assert.False(t, isPartial)

	assert.Equal(t, p.Instructions, got.Instructions)
	assert.Equal(t, p.Literals, got.Literals)
	assert.Equal(t, p.EntryPoints, got.EntryPoints)
	assert.Equal(t, p.EntryOrder, got.EntryOrder)
	assert.Equal(t, p.Sources, got.Sources)
	assert.Equal(t, p.RuleInfos, got.RuleInfos)
	assert.Equal(t, p.BuiltinInfoTable, got.BuiltinInfoTable)
	assert.True(t, value.Equal(p.RuleTree, got.RuleTree))
	assert.Equal(t, p.Metadata, got.Metadata)
	assert.Equal(t, p.Data.ArrayCreates, got.Data.ArrayCreates)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, _, _, err := DeserializeBinary([]byte("nope"))
	assert.Error(t, err)
}

func TestDeserializeRejectsBadVersion(t *testing.T) {
	p := sampleProgram()
	bin, err := p.SerializeBinary()
	assert.NoError(t, err)
	bin[4] = 0xFF // corrupt serialization_version
	_, _, _, err = DeserializeBinary(bin)
	assert.Error(t, err)
}

func TestDeserializePartialOnTruncatedCore(t *testing.T) {
	p := sampleProgram()
	bin, err := p.SerializeBinary()
	assert.NoError(t, err)
	truncated := bin[:len(bin)-4]
	got, isPartial, partial, err := DeserializeBinary(truncated)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, isPartial)
	assert.NotNil(t, partial)
	assert.Equal(t, []string{"data.demo.allow"}, partial.EntryOrder)
}

func TestGenerateListingIncludesEntryPointsAndRules(t *testing.T) {
	p := sampleProgram()
	listing := p.GenerateListing()
	assert.Contains(t, listing, "entry_point data.demo.allow")
	assert.Contains(t, listing, "rule[0] data.demo.allow")
	assert.Contains(t, listing, "LoadTrue")
	assert.Contains(t, listing, "Halt")
}

func TestInitializeResolvedBuiltins(t *testing.T) {
	p := sampleProgram()
	resolver := func(name string) (BuiltinFunc, bool) {
		if name == "count" {
			return func(args []value.Value) (value.Value, error) { return value.NewInt(1), nil }, true
		}
		return nil, false
	}
	p.InitializeResolvedBuiltins(resolver)
	assert.Len(t, p.ResolvedBuiltins, 1)
	assert.NotNil(t, p.ResolvedBuiltins[0])
}
