//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/timelimit"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// runFrame drives dispatch to completion for one frame, starting at
// startPC. It is the sole dispatch loop shared by RunToCompletion and
// Suspendable mode (spec.md §3.3): in Suspendable mode it blocks on the
// VM's event/resume channels in place whenever dispatch reports
// ctlSuspend or a breakpoint/step boundary is hit, which is what lets a
// deeply nested rule/function call suspend and resume exactly where it
// left off without an explicit frame stack.
func (vm *VM) runFrame(fr *frame, startPC int32) (value.Value, error) {
	pc := startPC
	for {
		vm.currentFrame = fr
		vm.lastPC = pc
		if vm.coverage != nil {
			vm.coverage[pc] = true
		}

		if vm.mode == Suspendable {
			if vm.breakpoints[pc] {
				vm.suspend(SuspendReason{Kind: SuspendBreakpoint, PC: pc, Dest: -1})
			} else if vm.stepMode {
				vm.suspend(SuspendReason{Kind: SuspendStep, PC: pc, Dest: -1})
			}
		}

		if vm.maxInstructions > 0 && vm.executedInstructions >= vm.maxInstructions {
			return value.Undefined(), common.NewErrorf(common.CodeInstructionLimitExceeded, "instruction limit of %d exceeded", vm.maxInstructions)
		}
		if err := vm.timer.Tick(1); err != nil {
			return value.Undefined(), err
		}
		vm.executedInstructions++

		st, err := vm.dispatch(fr, pc)
		if err != nil {
			return value.Undefined(), err
		}

		switch st.ctl {
		case ctlNext:
			pc++
		case ctlJump:
			pc = st.next
		case ctlReturn:
			return st.val, nil
		case ctlSuspend:
			resumed := vm.suspend(*st.suspend)
			if st.suspend.Dest >= 0 {
				fr.registers[st.suspend.Dest] = resumed
			}
			pc++
		}
	}
}

// suspend is called only from the dedicated Suspendable-mode goroutine.
// It publishes the suspended state and blocks until Resume supplies a
// value, implementing the channel-based coroutine described in the
// package doc comment.
func (vm *VM) suspend(reason SuspendReason) value.Value {
	vm.state = ExecutionState{Kind: StateSuspended, Suspend: &reason}
	vm.eventCh <- vm.state
	return <-vm.resumeCh
}

// runRule evaluates a 0-argument rule (complete, partial-set, or
// partial-object) from its first body instruction to RuleReturn.
func (vm *VM) runRule(ruleIndex int32) (value.Value, error) {
	ri := vm.prog.RuleInfos[ruleIndex]
	fr := newFrame(ri.RegisterWindowSize)
	fr.ruleIndex = ruleIndex
	fr.ruleReturnPC = ri.BodyPCs[len(ri.BodyPCs)-1]
	return vm.runFrame(fr, ri.BodyPCs[0])
}

// runRuleWithArgs evaluates a function rule, seeding its parameter
// registers (1..ParamCount, per the compiler's register-allocation
// order) from the caller-supplied arguments before running its body.
// Function results are never written to rule_cache (spec.md §4.6):
// each call gets a fresh frame regardless of prior calls to the same
// rule with different arguments.
func (vm *VM) runRuleWithArgs(ruleIndex int32, args []value.Value) (value.Value, error) {
	ri := vm.prog.RuleInfos[ruleIndex]
	fr := newFrame(ri.RegisterWindowSize)
	fr.ruleIndex = ruleIndex
	fr.ruleReturnPC = ri.BodyPCs[len(ri.BodyPCs)-1]
	for i, a := range args {
		fr.registers[int32(i)+1] = a
	}
	return vm.runFrame(fr, ri.BodyPCs[0])
}

// resetExecutionState clears per-execution caches and counters so a
// fresh Execute call starts with no leftover rule_cache entries from a
// prior run against (possibly different) data/input.
func (vm *VM) resetExecutionState() {
	vm.ruleCache = make([]ruleCacheSlot, len(vm.prog.RuleInfos))
	vm.inProgress = make(map[int32]bool)
	vm.executedInstructions = 0
	if cfg, ok := timelimit.Resolve(vm.localTimerConfig); ok {
		vm.timer.Start(cfg)
	}
}

// ExecuteEntryPointByName runs the named rule's (or entry point's)
// compiled path from the top, per spec.md §6.3. In RunToCompletion mode
// it returns only once the rule has fully resolved or errored; in
// Suspendable mode it may return early with StateSuspended, to be
// continued via Resume.
func (vm *VM) ExecuteEntryPointByName(name string) (ExecutionState, error) {
	idx, ok := vm.pathIndex[name]
	if !ok {
		return ExecutionState{}, common.NewErrorf(common.CodeEntryPointNotFound, "no compiled rule at path %q", name)
	}
	return vm.executeRule(idx)
}

// ExecuteEntryPointByIndex runs the i-th entry point in EntryOrder.
func (vm *VM) ExecuteEntryPointByIndex(i int) (ExecutionState, error) {
	if i < 0 || i >= len(vm.prog.EntryOrder) {
		return ExecutionState{}, common.NewErrorf(common.CodeInvalidEntryPointIndex, "entry point index %d out of range", i)
	}
	return vm.ExecuteEntryPointByName(vm.prog.EntryOrder[i])
}

func (vm *VM) executeRule(ruleIndex int32) (ExecutionState, error) {
	vm.mu.Lock()
	if vm.running {
		vm.mu.Unlock()
		return ExecutionState{}, common.NewErrorf(common.CodeInternal, "VM is already running an execution")
	}
	vm.running = true
	vm.mu.Unlock()

	vm.resetExecutionState()
	vm.state = ExecutionState{Kind: StateRunning}

	if vm.mode == RunToCompletion {
		v, err := vm.runRule(ruleIndex)
		vm.running = false
		if err != nil {
			vm.state = ExecutionState{Kind: StateError, Err: err}
			return vm.state, nil
		}
		vm.state = ExecutionState{Kind: StateCompleted, Value: v}
		return vm.state, nil
	}

	vm.eventCh = make(chan ExecutionState)
	vm.resumeCh = make(chan value.Value)
	go func() {
		v, err := vm.runRule(ruleIndex)
		if err != nil {
			vm.eventCh <- ExecutionState{Kind: StateError, Err: err}
			return
		}
		vm.eventCh <- ExecutionState{Kind: StateCompleted, Value: v}
	}()

	ev := <-vm.eventCh
	vm.state = ev
	if ev.Kind != StateSuspended {
		vm.running = false
	}
	return ev, nil
}

// Resume supplies a value to a Suspendable-mode evaluation blocked on
// HostAwait, a breakpoint, or a step boundary, and runs until the next
// suspension or completion.
func (vm *VM) Resume(v value.Value) (ExecutionState, error) {
	vm.mu.Lock()
	if !vm.running || vm.state.Kind != StateSuspended {
		vm.mu.Unlock()
		return ExecutionState{}, common.NewErrorf(common.CodeInternal, "VM is not suspended")
	}
	vm.mu.Unlock()

	vm.resumeCh <- v
	ev := <-vm.eventCh
	vm.state = ev
	if ev.Kind != StateSuspended {
		vm.running = false
	}
	return ev, nil
}
