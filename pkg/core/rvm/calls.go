//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"strings"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// printBuiltinName is the reserved call name for Rego's print()
// function. It is never resolved against the builtin registry: its
// output is diverted to the VM's attached print collector (or
// discarded, if gather_prints isn't enabled) instead of producing a
// register value through the ordinary builtin-dispatch path.
const printBuiltinName = "print"

// dispatchBuiltinCall resolves and invokes a registered builtin, per
// spec.md §4.7. A builtin that returns Undefined signals a type/domain
// mismatch; that surfaces as BuiltinError only under
// strict_builtin_errors, otherwise it propagates as Undefined like any
// other value.
func (vm *VM) dispatchBuiltinCall(fr *frame, instr isa.Instruction) (step, error) {
	p := vm.prog.Data.BuiltinCalls[instr.Handle]
	if vm.prog.BuiltinInfoTable[p.Index].Name == printBuiltinName {
		return vm.dispatchPrint(fr, p)
	}
	fn := vm.prog.ResolvedBuiltins[p.Index]
	if fn == nil {
		return stepNext, common.NewErrorf(common.CodeMissingBuiltin, "unresolved builtin %q", vm.prog.BuiltinInfoTable[p.Index].Name)
	}
	args := make([]value.Value, len(p.Args))
	for i, r := range p.Args {
		args[i] = fr.registers[r]
	}
	result, err := fn(args)
	if err != nil {
		return stepNext, common.NewErrorf(common.CodeBuiltinError, "%s: %v", vm.prog.BuiltinInfoTable[p.Index].Name, err)
	}
	if result.IsUndefined() && vm.strictBuiltinErrors {
		return stepNext, common.NewErrorf(common.CodeBuiltinError, "%s: undefined result for given arguments", vm.prog.BuiltinInfoTable[p.Index].Name)
	}
	fr.registers[p.Dest] = result
	return stepNext, nil
}

// dispatchPrint formats print()'s arguments and, when a print collector
// is attached, hands the line to it. print() always yields true
// (matching Rego's own "print never fails" behavior), never
// BuiltinError, regardless of strict_builtin_errors.
func (vm *VM) dispatchPrint(fr *frame, p isa.BuiltinCallParams) (step, error) {
	if vm.prints != nil {
		parts := make([]string, len(p.Args))
		for i, r := range p.Args {
			parts[i] = fr.registers[r].String()
		}
		vm.prints.Add(strings.Join(parts, " "))
	}
	fr.registers[p.Dest] = value.NewBool(true)
	return stepNext, nil
}

// dispatchFunctionCall invokes a user-defined function rule in a fresh
// register window, per spec.md §4.6. Function results are never
// memoized in rule_cache: a function's value depends on its arguments,
// not just its identity.
func (vm *VM) dispatchFunctionCall(fr *frame, instr isa.Instruction) (step, error) {
	p := vm.prog.Data.FunctionCalls[instr.Handle]
	args := make([]value.Value, len(p.Args))
	for i, r := range p.Args {
		args[i] = fr.registers[r]
	}
	result, err := vm.runRuleWithArgs(p.RuleIndex, args)
	if err != nil {
		return stepNext, err
	}
	fr.registers[p.Dest] = result
	return stepNext, nil
}

// lookupVirtualData resolves a data.* reference path, lazily evaluating
// and caching any compiled rule it crosses, falling back to the static
// data document for paths the compiler did not resolve to a rule, per
// spec.md §4.6's virtual-document-lookup semantics.
func (vm *VM) lookupVirtualData(path []string) (value.Value, error) {
	full := "data." + joinDots(path)
	if idx, ok := vm.pathIndex[full]; ok {
		return vm.evalRuleCached(idx)
	}
	return vm.data.GetPath(path), nil
}

func joinDots(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

// evalRuleCached returns ruleIndex's memoized value, computing it (and
// guarding against a rule referencing itself through data.*) on first
// access, per spec.md §4.6's rule_cache and recursion-guard semantics.
func (vm *VM) evalRuleCached(ruleIndex int32) (value.Value, error) {
	slot := &vm.ruleCache[ruleIndex]
	if slot.computed {
		return slot.value, nil
	}
	if vm.inProgress[ruleIndex] {
		return value.Undefined(), nil
	}
	vm.inProgress[ruleIndex] = true
	v, err := vm.runRule(ruleIndex)
	delete(vm.inProgress, ruleIndex)
	if err != nil {
		return value.Undefined(), err
	}
	slot.computed = true
	slot.value = v
	return v, nil
}

// dispatchHostAwait resolves a host-await call, per spec.md §4.8. In
// RunToCompletion mode it consults a pre-scripted response, failing
// with HostAwaitResponseMissing when none was provided. In Suspendable
// mode it suspends evaluation instead, handing control back to Resume.
func (vm *VM) dispatchHostAwait(fr *frame, instr isa.Instruction, pc int32) (step, error) {
	identifier := fr.registers[instr.B]
	argument := fr.registers[instr.C]

	if vm.mode == RunToCompletion {
		resp, ok := vm.hostAwaitResponses[identifier.String()]
		if !ok {
			return stepNext, common.NewErrorf(common.CodeHostAwaitResponseMissing, "no response scripted for host-await %q", identifier.String())
		}
		fr.registers[instr.A] = resp
		return stepNext, nil
	}

	return step{
		ctl: ctlSuspend,
		suspend: &SuspendReason{
			Kind:       SuspendHostAwait,
			PC:         pc,
			Dest:       instr.A,
			Identifier: identifier,
			Argument:   argument,
		},
	}, nil
}
