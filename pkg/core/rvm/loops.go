//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// dispatchLoopStart initialises a LoopContext from LoopStartParams and
// either seeds the first iteration's key/value registers (falling
// through into the loop body, which immediately follows in the
// instruction stream) or, for an empty collection, resolves the
// zero-iteration result and jumps straight to loop_end, per spec.md
// §4.6.
func (vm *VM) dispatchLoopStart(fr *frame, instr isa.Instruction) (step, error) {
	p := vm.prog.Data.LoopStarts[instr.Handle]
	elems := collectionElems(fr.registers[p.Collection])
	lf := &loopFrame{handle: instr.Handle, params: p, elems: elems}

	if len(elems) == 0 {
		switch p.Mode {
		case isa.LoopEvery:
			fr.registers[p.ResultReg] = value.NewBool(true)
		case isa.LoopAny:
			// ResultReg is left as it is: still undefined from RuleInit
			// for a hoisted rule loop, and for `some ... in` the LoadFalse
			// the compiler places after LoopStart is skipped on this path.
		}
		return stepJump(p.LoopEnd), nil
	}

	fr.loopStack = append(fr.loopStack, lf)
	setLoopVars(fr, p, elems[0])
	lf.nextIdx = 1
	return stepNext, nil
}

func setLoopVars(fr *frame, p isa.LoopStartParams, e kv) {
	if p.KeyReg >= 0 {
		fr.registers[p.KeyReg] = e.key
	}
	fr.registers[p.ValueReg] = e.val
}

// dispatchLoopNext interprets the iteration that just finished (success
// unless AssertCondition marked it failed), advances to the next
// element or finalises the loop result, per spec.md §4.6's Any/Every/
// ForEach semantics.
func (vm *VM) dispatchLoopNext(fr *frame, instr isa.Instruction) (step, error) {
	n := len(fr.loopStack)
	lf := fr.loopStack[n-1]
	failed := fr.iterationFailed
	fr.iterationFailed = false
	p := lf.params

	switch p.Mode {
	case isa.LoopAny:
		if !failed {
			fr.registers[p.ResultReg] = value.NewBool(true)
			fr.loopStack = fr.loopStack[:n-1]
			return stepJump(p.LoopEnd), nil
		}
	case isa.LoopEvery:
		if failed {
			fr.registers[p.ResultReg] = value.NewBool(false)
			fr.loopStack = fr.loopStack[:n-1]
			return stepJump(p.LoopEnd), nil
		}
	case isa.LoopForEach:
		// Success or failure of one iteration never ends a ForEach
		// loop early; a failed iteration is simply skipped.
	}

	if lf.nextIdx >= len(lf.elems) {
		fr.loopStack = fr.loopStack[:n-1]
		return stepJump(p.LoopEnd), nil
	}
	setLoopVars(fr, p, lf.elems[lf.nextIdx])
	lf.nextIdx++
	return stepJump(p.BodyStart), nil
}

// dispatchComprehensionBegin mirrors dispatchLoopStart but allocates a
// collection builder instead of a boolean result register, per spec.md
// §4.6.
func (vm *VM) dispatchComprehensionBegin(fr *frame, instr isa.Instruction) (step, error) {
	p := vm.prog.Data.ComprehensionBegins[instr.Handle]
	elems := collectionElems(fr.registers[p.Collection])
	cf := &compFrame{handle: instr.Handle, params: p, elems: elems}

	if len(elems) == 0 {
		fr.registers[p.ResultReg] = emptyComprehensionResult(p.Kind)
		return stepJump(p.LoopEnd), nil
	}

	fr.compStack = append(fr.compStack, cf)
	setLoopVars(fr, isa.LoopStartParams{KeyReg: p.KeyReg, ValueReg: p.ValueReg}, elems[0])
	cf.nextIdx = 1
	return stepNext, nil
}

func emptyComprehensionResult(kind isa.ComprehensionKind) value.Value {
	switch kind {
	case isa.ComprehensionSet:
		return value.NewSet()
	case isa.ComprehensionObject:
		return value.NewObject()
	default:
		return value.NewArray()
	}
}

// dispatchComprehensionYield appends the current iteration's value (and
// key, for object comprehensions) into the active builder.
func (vm *VM) dispatchComprehensionYield(fr *frame, instr isa.Instruction) (step, error) {
	n := len(fr.compStack)
	cf := fr.compStack[n-1]
	valueReg := instr.A
	switch cf.params.Kind {
	case isa.ComprehensionArray:
		cf.arrayOut = append(cf.arrayOut, fr.registers[valueReg])
	case isa.ComprehensionSet:
		cf.setOut = append(cf.setOut, fr.registers[valueReg])
	case isa.ComprehensionObject:
		cf.objKeys = append(cf.objKeys, fr.registers[instr.B])
		cf.objVals = append(cf.objVals, fr.registers[valueReg])
	}
	return stepNext, nil
}

// dispatchComprehensionEnd advances to the next source element while
// any remain; once they are exhausted, it finalises the active builder
// into its ResultReg, pops the comprehension and falls through.
func (vm *VM) dispatchComprehensionEnd(fr *frame) (step, error) {
	n := len(fr.compStack)
	cf := fr.compStack[n-1]

	if cf.nextIdx < len(cf.elems) {
		setLoopVars(fr, isa.LoopStartParams{KeyReg: cf.params.KeyReg, ValueReg: cf.params.ValueReg}, cf.elems[cf.nextIdx])
		cf.nextIdx++
		return stepJump(cf.params.BodyStart), nil
	}

	var result value.Value
	switch cf.params.Kind {
	case isa.ComprehensionSet:
		result = value.NewSet(cf.setOut...)
	case isa.ComprehensionObject:
		pairs := make([][2]value.Value, len(cf.objKeys))
		for i := range cf.objKeys {
			pairs[i] = [2]value.Value{cf.objKeys[i], cf.objVals[i]}
		}
		result = value.NewObject(pairs...)
	default:
		result = value.NewArray(cf.arrayOut...)
	}
	fr.registers[cf.params.ResultReg] = result
	fr.compStack = fr.compStack[:n-1]
	return stepNext, nil
}
