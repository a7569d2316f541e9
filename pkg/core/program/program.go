//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package program implements the Program artifact described in
// spec.md §3.2: the in-memory compiled representation plus its binary
// serialization form (§4.4).
package program

import (
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// Source is one module's source record, kept for diagnostics and
// recompilation.
type Source struct {
	ID      string
	File    string
	Content string
}

// RuleInfo is one rule's compiled metadata.
type RuleInfo struct {
	Path                   string // fully-qualified, e.g. "data.demo.allow"
	ResultRegister         int32
	RegisterWindowSize     int32
	HasDefault             bool
	DefaultValue           value.Value
	DestructuringBlockStart int32 // -1 if the rule head has no pattern
	BodyPCs                []int32
	IsFunction             bool
	IsComplete             bool
	IsPartialSet           bool
	IsPartialObject        bool
	ParamCount             int
}

// BuiltinInfo is one (name, arity, flags) record; indices are embedded
// in BuiltinCall parameter tables.
type BuiltinInfo struct {
	Name  string
	Arity int
	// Flags is reserved for future builtin dispatch metadata (e.g.
	// nondeterministic), mirroring builtins.Flags.
	Flags uint32
}

// Metadata carries compiler provenance and feature flags.
type Metadata struct {
	CompilerVersion string
	RegoV0          bool
	EnableCoverage  bool
}

// InstructionData holds every parameter-table variant, indexed by the
// u16 handle embedded in an Instruction.
type InstructionData struct {
	LoopStarts            []isa.LoopStartParams
	ArrayCreates           []isa.ArrayCreateParams
	ObjectCreates          []isa.ObjectCreateParams
	SetCreates             []isa.SetCreateParams
	BuiltinCalls           []isa.BuiltinCallParams
	FunctionCalls          []isa.FunctionCallParams
	VirtualDataLookups     []isa.VirtualDataLookupParams
	ChainedIndexes         []isa.ChainedIndexParams
	ComprehensionBegins    []isa.ComprehensionBeginParams
}

// Span is an optional PC -> source-location mapping entry.
type Span struct {
	PC   int32
	File string
	Line int
	Col  int
}

// Program is the compiled artifact described in spec.md §3.2.
type Program struct {
	Instructions []isa.Instruction
	Literals     []value.Value
	Data         InstructionData

	BuiltinInfoTable []BuiltinInfo
	ResolvedBuiltins []BuiltinFunc `json:"-"` // not serialized; populated by Initialize

	EntryPoints   map[string]int32
	EntryOrder    []string // insertion order, for stable listings
	Sources       []Source
	RuleInfos     []RuleInfo
	InstructionSpans []Span

	RuleTree value.Value // nested Object mirroring the rule namespace

	Metadata Metadata

	MaxRuleWindowSize         int32
	NeedsRuntimeRecursionCheck bool
}

// BuiltinFunc is the resolved function-pointer shape stored in
// ResolvedBuiltins; kept as an alias so this package does not import
// pkg/core/builtins (which would create an import cycle with compiler
// wiring) — hosts hand in a resolver at load time instead.
type BuiltinFunc func(args []value.Value) (value.Value, error)

// BuiltinResolver looks up a builtin implementation by name, the
// host_builtin_table parameter of initialize_resolved_builtins
// (spec.md §4.4).
type BuiltinResolver func(name string) (BuiltinFunc, bool)

// New returns an empty Program with its maps initialized.
func New() *Program {
	return &Program{
		EntryPoints: make(map[string]int32),
		RuleTree:    value.NewObject(),
	}
}

// InitializeResolvedBuiltins resolves each BuiltinInfoTable entry by
// name via resolver and stores the result in ResolvedBuiltins,
// matching entry order. An unresolved entry leaves a nil function;
// BuiltinCall treats that as MissingBuiltin.
func (p *Program) InitializeResolvedBuiltins(resolver BuiltinResolver) {
	p.ResolvedBuiltins = make([]BuiltinFunc, len(p.BuiltinInfoTable))
	for i, info := range p.BuiltinInfoTable {
		if fn, ok := resolver(info.Name); ok {
			p.ResolvedBuiltins[i] = fn
		}
	}
}
