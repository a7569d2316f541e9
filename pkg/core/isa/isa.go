//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package isa defines the RegoVM instruction set: the Opcode enum, the
// packed Instruction representation, and the parameter-table payload
// types referenced by a u16 handle, per spec.md §4.5.
package isa

// Opcode identifies one instruction's operation.
type Opcode uint32

const (
	OpLoad Opcode = iota
	OpLoadTrue
	OpLoadFalse
	OpLoadNull
	OpLoadBool
	OpLoadData
	OpLoadInput
	OpMove

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpAssertCondition
	OpAssertNotUndefined

	OpObjectSet
	OpObjectCreate
	OpArrayNew
	OpArrayPush
	OpArrayCreate
	OpSetNew
	OpSetAdd
	OpSetCreate
	OpIndex
	OpIndexLiteral
	OpChainedIndex
	OpContains
	OpCount
	OpVirtualDataDocumentLookup

	OpLoopStart
	OpLoopNext
	OpComprehensionBegin
	OpComprehensionYield
	OpComprehensionEnd

	OpBuiltinCall
	OpFunctionCall
	OpCallRule
	OpRuleInit
	OpReturn
	OpRuleReturn
	OpDestructuringSuccess

	OpHostAwait

	OpHalt
)

var opcodeNames = map[Opcode]string{
	OpLoad: "Load", OpLoadTrue: "LoadTrue", OpLoadFalse: "LoadFalse", OpLoadNull: "LoadNull",
	OpLoadBool: "LoadBool", OpLoadData: "LoadData", OpLoadInput: "LoadInput", OpMove: "Move",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpEq: "Eq", OpNe: "Ne", OpLt: "Lt", OpLe: "Le", OpGt: "Gt", OpGe: "Ge",
	OpAnd: "And", OpOr: "Or", OpNot: "Not",
	OpAssertCondition: "AssertCondition", OpAssertNotUndefined: "AssertNotUndefined",
	OpObjectSet: "ObjectSet", OpObjectCreate: "ObjectCreate",
	OpArrayNew: "ArrayNew", OpArrayPush: "ArrayPush", OpArrayCreate: "ArrayCreate",
	OpSetNew: "SetNew", OpSetAdd: "SetAdd", OpSetCreate: "SetCreate",
	OpIndex: "Index", OpIndexLiteral: "IndexLiteral", OpChainedIndex: "ChainedIndex",
	OpContains: "Contains", OpCount: "Count", OpVirtualDataDocumentLookup: "VirtualDataDocumentLookup",
	OpLoopStart: "LoopStart", OpLoopNext: "LoopNext",
	OpComprehensionBegin: "ComprehensionBegin", OpComprehensionYield: "ComprehensionYield", OpComprehensionEnd: "ComprehensionEnd",
	OpBuiltinCall: "BuiltinCall", OpFunctionCall: "FunctionCall", OpCallRule: "CallRule",
	OpRuleInit: "RuleInit", OpReturn: "Return", OpRuleReturn: "RuleReturn", OpDestructuringSuccess: "DestructuringSuccess",
	OpHostAwait: "HostAwait",
	OpHalt:      "Halt",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

// NoHandle marks an Instruction.Handle as unused, distinguishing (e.g.)
// ObjectCreate's "seed an empty object" form, which only needs operand
// A, from its "build from a parameter-table literal" form, which needs
// a real index into instruction_data.
const NoHandle uint16 = 0xFFFF

// Instruction is one fixed-width opcode record. Simple operands live
// directly in A/B/C; complex operands (parameter-table variants) are
// referenced by Handle into a Program's instruction_data table.
type Instruction struct {
	Op     Opcode
	A      int32
	B      int32
	C      int32
	Handle uint16
}

// LoopMode selects LoopNext's short-circuit behavior.
type LoopMode int

const (
	LoopAny LoopMode = iota
	LoopEvery
	LoopForEach
)

func (m LoopMode) String() string {
	switch m {
	case LoopAny:
		return "Any"
	case LoopEvery:
		return "Every"
	case LoopForEach:
		return "ForEach"
	default:
		return "UNKNOWN"
	}
}

// LoopStartParams is LoopStart's instruction_data payload.
type LoopStartParams struct {
	Mode       LoopMode
	Collection int32 // register holding the collection
	KeyReg     int32 // -1 if unused
	ValueReg   int32
	ResultReg  int32
	BodyStart  int32 // PC
	LoopEnd    int32 // PC
}

// ArrayCreateParams builds an array literal from a contiguous run of
// source registers.
type ArrayCreateParams struct {
	Dest     int32
	Elements []int32
}

// ObjectCreateParams builds an object literal from parallel key/value
// register lists.
type ObjectCreateParams struct {
	Dest   int32
	Keys   []int32
	Values []int32
}

// SetCreateParams builds a set literal from a list of value registers.
type SetCreateParams struct {
	Dest     int32
	Elements []int32
}

// BuiltinCallParams invokes a resolved builtin by table index.
type BuiltinCallParams struct {
	Dest  int32
	Index int32
	Args  []int32
}

// FunctionCallParams invokes a user-defined (parameterised) rule.
type FunctionCallParams struct {
	Dest      int32
	RuleIndex int32
	Args      []int32
}

// VirtualDataLookupParams walks a path through data, lazily evaluating
// rules encountered along the way.
type VirtualDataLookupParams struct {
	Dest int32
	Path []string
}

// ChainedIndexParams applies a sequence of index operations to a base
// register in one instruction, covering `a.b[c].d`-style access chains.
type ChainedIndexParams struct {
	Dest int32
	Base int32
	// Keys holds one entry per indexing step; exactly one of LitIdx
	// (literal key, resolved at compile time) or Reg (dynamic key,
	// resolved at runtime) is meaningful per step, selected by Dynamic.
	Keys []ChainedIndexStep
}

// ChainedIndexStep is one step of a ChainedIndexParams access chain.
type ChainedIndexStep struct {
	Dynamic bool
	LitIdx  int32
	Reg     int32
}

// ComprehensionKind selects the kind of collection a comprehension
// accumulates into.
type ComprehensionKind int

const (
	ComprehensionArray ComprehensionKind = iota
	ComprehensionSet
	ComprehensionObject
)

// ComprehensionBeginParams allocates a comprehension builder and
// initialises its source iteration, mirroring LoopStartParams.
type ComprehensionBeginParams struct {
	Kind       ComprehensionKind
	Collection int32
	KeyReg     int32
	ValueReg   int32
	ResultReg  int32
	BodyStart  int32
	LoopEnd    int32
}
