//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// ctl is the internal control-transfer signal a single dispatch
// produces, refining spec.md §4.5's four outcomes (`Continue`, `Return`,
// `Break`, `Suspend`) into what the caller's run loop needs to do next.
// `Break` never escapes dispatch: AssertCondition/AssertNotUndefined
// resolve their own jump target (innermost loop, else the rule's
// RuleReturn) and report it as ctlJump, per the design recorded in
// DESIGN.md.
type ctl int

const (
	ctlNext ctl = iota // pc += 1
	ctlJump            // pc = step.next
	ctlReturn          // frame finished; result is step.val
	ctlSuspend         // Suspendable mode only; vm.state already populated
)

// step is one dispatch's outcome: what the run loop should do, and
// whichever payload (jump target or return value) that implies.
type step struct {
	ctl     ctl
	next    int32
	val     value.Value
	suspend *SuspendReason
}

var stepNext = step{ctl: ctlNext}

func stepJump(pc int32) step    { return step{ctl: ctlJump, next: pc} }
func stepReturn(v value.Value) step { return step{ctl: ctlReturn, val: v} }

// truthy implements the condition test AssertCondition/loop dispatch use:
// Undefined and boolean-false are falsy, everything else (including
// non-boolean values, which Rego treats as present) is truthy.
func truthy(v value.Value) bool {
	if v.IsUndefined() {
		return false
	}
	if v.Kind() == value.KindBool {
		return v.Bool()
	}
	return true
}

// breakTarget resolves AssertCondition/AssertNotUndefined's dynamic jump
// destination: the innermost active loop's LoopNext instruction if one
// is active, otherwise the enclosing rule's RuleReturn instruction.
func breakTarget(fr *frame, instrs []isa.Instruction) int32 {
	if n := len(fr.loopStack); n > 0 {
		fr.iterationFailed = true
		return findLoopNext(instrs, fr.loopStack[n-1].handle)
	}
	return fr.ruleReturnPC
}

// findLoopNext scans forward from the start of the instruction stream
// for the LoopNext whose LoopStart carries the given handle. Loop
// bodies never nest two active loops sharing a handle, so the first
// match belongs to the active loop.
func findLoopNext(instrs []isa.Instruction, handle uint16) int32 {
	for pc, ins := range instrs {
		if ins.Op != isa.OpLoopStart || ins.Handle != handle {
			continue
		}
		for j := pc + 1; j < len(instrs); j++ {
			if instrs[j].Op == isa.OpLoopNext && instrs[instrs[j].A].Handle == handle {
				return int32(j)
			}
		}
	}
	return int32(len(instrs) - 1)
}

// dispatch executes one instruction against fr, returning the control
// signal the caller's run loop should act on.
func (vm *VM) dispatch(fr *frame, pc int32) (step, error) {
	instrs := vm.prog.Instructions
	instr := instrs[pc]
	data := &vm.prog.Data

	switch instr.Op {
	case isa.OpLoad:
		fr.registers[instr.A] = vm.prog.Literals[instr.B]
		return stepNext, nil
	case isa.OpLoadTrue:
		fr.registers[instr.A] = value.NewBool(true)
		return stepNext, nil
	case isa.OpLoadFalse:
		fr.registers[instr.A] = value.NewBool(false)
		return stepNext, nil
	case isa.OpLoadNull:
		fr.registers[instr.A] = value.Null()
		return stepNext, nil
	case isa.OpLoadBool:
		fr.registers[instr.A] = value.NewBool(instr.B != 0)
		return stepNext, nil
	case isa.OpLoadData:
		fr.registers[instr.A] = vm.data
		return stepNext, nil
	case isa.OpLoadInput:
		fr.registers[instr.A] = vm.input
		return stepNext, nil
	case isa.OpMove:
		fr.registers[instr.A] = fr.registers[instr.B]
		return stepNext, nil

	case isa.OpAdd, isa.OpSub, isa.OpMul, isa.OpDiv, isa.OpMod:
		return vm.dispatchArith(fr, instr)

	case isa.OpEq:
		fr.registers[instr.A] = value.NewBool(value.Equal(fr.registers[instr.B], fr.registers[instr.C]))
		return stepNext, nil
	case isa.OpNe:
		fr.registers[instr.A] = value.NewBool(!value.Equal(fr.registers[instr.B], fr.registers[instr.C]))
		return stepNext, nil
	case isa.OpLt:
		fr.registers[instr.A] = value.NewBool(value.Compare(fr.registers[instr.B], fr.registers[instr.C]) < 0)
		return stepNext, nil
	case isa.OpLe:
		fr.registers[instr.A] = value.NewBool(value.Compare(fr.registers[instr.B], fr.registers[instr.C]) <= 0)
		return stepNext, nil
	case isa.OpGt:
		fr.registers[instr.A] = value.NewBool(value.Compare(fr.registers[instr.B], fr.registers[instr.C]) > 0)
		return stepNext, nil
	case isa.OpGe:
		fr.registers[instr.A] = value.NewBool(value.Compare(fr.registers[instr.B], fr.registers[instr.C]) >= 0)
		return stepNext, nil
	case isa.OpAnd:
		fr.registers[instr.A] = value.NewBool(truthy(fr.registers[instr.B]) && truthy(fr.registers[instr.C]))
		return stepNext, nil
	case isa.OpOr:
		fr.registers[instr.A] = value.NewBool(truthy(fr.registers[instr.B]) || truthy(fr.registers[instr.C]))
		return stepNext, nil
	case isa.OpNot:
		fr.registers[instr.A] = value.NewBool(!truthy(fr.registers[instr.B]))
		return stepNext, nil

	case isa.OpAssertCondition:
		if truthy(fr.registers[instr.A]) {
			return stepNext, nil
		}
		return stepJump(breakTarget(fr, instrs)), nil
	case isa.OpAssertNotUndefined:
		if !fr.registers[instr.A].IsUndefined() {
			return stepNext, nil
		}
		return stepJump(breakTarget(fr, instrs)), nil

	case isa.OpObjectSet:
		fr.registers[instr.A] = setObjectKey(fr.registers[instr.A], fr.registers[instr.B], fr.registers[instr.C])
		return stepNext, nil
	case isa.OpObjectCreate:
		if instr.Handle == isa.NoHandle {
			fr.registers[instr.A] = value.NewObject()
			return stepNext, nil
		}
		p := data.ObjectCreates[instr.Handle]
		pairs := make([][2]value.Value, len(p.Keys))
		for i := range p.Keys {
			pairs[i] = [2]value.Value{fr.registers[p.Keys[i]], fr.registers[p.Values[i]]}
		}
		fr.registers[p.Dest] = value.NewObject(pairs...)
		return stepNext, nil
	case isa.OpArrayNew:
		fr.registers[instr.A] = value.NewArray()
		return stepNext, nil
	case isa.OpArrayPush:
		fr.registers[instr.A] = appendArrayElem(fr.registers[instr.A], fr.registers[instr.B])
		return stepNext, nil
	case isa.OpArrayCreate:
		p := data.ArrayCreates[instr.Handle]
		elems := make([]value.Value, len(p.Elements))
		for i, r := range p.Elements {
			elems[i] = fr.registers[r]
		}
		fr.registers[p.Dest] = value.NewArray(elems...)
		return stepNext, nil
	case isa.OpSetNew:
		fr.registers[instr.A] = value.NewSet()
		return stepNext, nil
	case isa.OpSetAdd:
		fr.registers[instr.A] = addSetElem(fr.registers[instr.A], fr.registers[instr.B])
		return stepNext, nil
	case isa.OpSetCreate:
		p := data.SetCreates[instr.Handle]
		elems := make([]value.Value, len(p.Elements))
		for i, r := range p.Elements {
			elems[i] = fr.registers[r]
		}
		fr.registers[p.Dest] = value.NewSet(elems...)
		return stepNext, nil
	case isa.OpIndex:
		fr.registers[instr.A] = fr.registers[instr.B].Get(fr.registers[instr.C])
		return stepNext, nil
	case isa.OpIndexLiteral:
		fr.registers[instr.A] = fr.registers[instr.B].Get(vm.prog.Literals[instr.C])
		return stepNext, nil
	case isa.OpChainedIndex:
		p := data.ChainedIndexes[instr.Handle]
		cur := fr.registers[p.Base]
		for _, chainStep := range p.Keys {
			if chainStep.Dynamic {
				cur = cur.Get(fr.registers[chainStep.Reg])
			} else {
				cur = cur.Get(vm.prog.Literals[chainStep.LitIdx])
			}
		}
		fr.registers[p.Dest] = cur
		return stepNext, nil
	case isa.OpContains:
		fr.registers[instr.A] = value.NewBool(fr.registers[instr.B].Contains(fr.registers[instr.C]))
		return stepNext, nil
	case isa.OpCount:
		fr.registers[instr.A] = value.NewInt(int64(fr.registers[instr.B].Len()))
		return stepNext, nil
	case isa.OpVirtualDataDocumentLookup:
		p := data.VirtualDataLookups[instr.Handle]
		v, err := vm.lookupVirtualData(p.Path)
		if err != nil {
			return stepNext, err
		}
		fr.registers[p.Dest] = v
		return stepNext, nil

	case isa.OpLoopStart:
		return vm.dispatchLoopStart(fr, instr)
	case isa.OpLoopNext:
		return vm.dispatchLoopNext(fr, instr)
	case isa.OpComprehensionBegin:
		return vm.dispatchComprehensionBegin(fr, instr)
	case isa.OpComprehensionYield:
		return vm.dispatchComprehensionYield(fr, instr)
	case isa.OpComprehensionEnd:
		return vm.dispatchComprehensionEnd(fr)

	case isa.OpBuiltinCall:
		return vm.dispatchBuiltinCall(fr, instr)
	case isa.OpFunctionCall:
		return vm.dispatchFunctionCall(fr, instr)
	case isa.OpCallRule:
		v, err := vm.evalRuleCached(instr.B)
		if err != nil {
			return stepNext, err
		}
		fr.registers[instr.A] = v
		return stepNext, nil
	case isa.OpRuleInit:
		ri := vm.prog.RuleInfos[instr.B]
		switch {
		case ri.IsPartialSet:
			fr.registers[instr.A] = value.NewSet()
		case ri.IsPartialObject:
			fr.registers[instr.A] = value.NewObject()
		default:
			fr.registers[instr.A] = value.Undefined()
		}
		return stepNext, nil
	case isa.OpReturn:
		return stepReturn(fr.registers[instr.A]), nil
	case isa.OpRuleReturn:
		var result value.Value
		if fr.ruleIndex >= 0 {
			ri := vm.prog.RuleInfos[fr.ruleIndex]
			result = fr.registers[ri.ResultRegister]
			if ri.HasDefault && result.IsUndefined() {
				result = ri.DefaultValue
			}
		} else {
			result = value.Undefined()
		}
		return stepReturn(result), nil
	case isa.OpDestructuringSuccess:
		return stepNext, nil

	case isa.OpHostAwait:
		return vm.dispatchHostAwait(fr, instr, pc)

	case isa.OpHalt:
		return stepReturn(fr.registers[0]), nil
	}
	return stepNext, common.NewErrorf(common.CodeInternal, "unhandled opcode %s", instr.Op)
}

func (vm *VM) dispatchArith(fr *frame, instr isa.Instruction) (step, error) {
	lhs, rhs := fr.registers[instr.B], fr.registers[instr.C]
	numeric := func(v value.Value) bool { return v.Kind() == value.KindInt64 || v.Kind() == value.KindFloat64 }
	if !numeric(lhs) || !numeric(rhs) {
		if vm.strictBuiltinErrors {
			return stepNext, common.NewErrorf(common.CodeArithmeticError, "non-numeric operand to %s", instr.Op)
		}
		fr.registers[instr.A] = value.Undefined()
		return stepNext, nil
	}
	bothInt := lhs.Kind() == value.KindInt64 && rhs.Kind() == value.KindInt64

	if (instr.Op == isa.OpDiv || instr.Op == isa.OpMod) && rhs.Number() == 0 {
		if vm.strictBuiltinErrors {
			return stepNext, common.NewErrorf(common.CodeArithmeticError, "division by zero")
		}
		fr.registers[instr.A] = value.Undefined()
		return stepNext, nil
	}

	var result value.Value
	switch instr.Op {
	case isa.OpAdd:
		if bothInt {
			result = value.NewInt(lhs.Int() + rhs.Int())
		} else {
			result = value.NewFloat(lhs.Number() + rhs.Number())
		}
	case isa.OpSub:
		if bothInt {
			result = value.NewInt(lhs.Int() - rhs.Int())
		} else {
			result = value.NewFloat(lhs.Number() - rhs.Number())
		}
	case isa.OpMul:
		if bothInt {
			result = value.NewInt(lhs.Int() * rhs.Int())
		} else {
			result = value.NewFloat(lhs.Number() * rhs.Number())
		}
	case isa.OpDiv:
		if bothInt && lhs.Int()%rhs.Int() == 0 {
			result = value.NewInt(lhs.Int() / rhs.Int())
		} else {
			result = value.NewFloat(lhs.Number() / rhs.Number())
		}
	case isa.OpMod:
		if bothInt {
			result = value.NewInt(lhs.Int() % rhs.Int())
		} else {
			result = value.Undefined()
		}
	}
	fr.registers[instr.A] = result
	return stepNext, nil
}
