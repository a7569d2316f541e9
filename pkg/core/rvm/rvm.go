//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package rvm implements RegoVM, the register-based virtual machine that
// executes a compiled pkg/core/program.Program, per spec.md §3.3 and
// §4.6–§4.9.
//
// Suspendable-mode evaluation is not implemented as the spec's literal
// stackless execution_stack of {Main, Rule, Loop, Comprehension} frames.
// Go already has an idiomatic primitive for "run until a cooperative
// suspension point, then resume exactly where it left off": a goroutine
// blocked on a channel. RegoVM runs the same recursive evaluator
// (shared with run-to-completion mode) on a dedicated goroutine in
// suspendable mode; HostAwait, breakpoints, and step_mode each suspend
// by sending the current state on a channel and blocking for a resume
// value. This preserves every externally observable guarantee spec.md
// §5 requires — synchronous execute/resume, single active evaluation,
// no intra-evaluation parallelism, state observable between calls —
// without hand-rolling a second, parallel interpreter over explicit
// frame structs. See DESIGN.md.
package rvm

import (
	"sync"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/builtins"
	"github.com/manetu/rego-rvm/pkg/core/diagnostics"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/timelimit"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// ExecutionMode selects run-to-completion or suspendable evaluation,
// per spec.md §3.3.
type ExecutionMode int

const (
	RunToCompletion ExecutionMode = iota
	Suspendable
)

// StateKind classifies ExecutionState, mirroring spec.md §3.3's
// `Ready | Running | Suspended(reason) | Completed(value) | Error(err)`.
type StateKind int

const (
	StateReady StateKind = iota
	StateRunning
	StateSuspended
	StateCompleted
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SuspendKind classifies why evaluation paused in Suspendable mode.
type SuspendKind int

const (
	SuspendHostAwait SuspendKind = iota
	SuspendBreakpoint
	SuspendStep
)

// SuspendReason describes one suspension point, per spec.md §4.8/§5.
type SuspendReason struct {
	Kind       SuspendKind
	PC         int32
	Dest       int32 // destination register awaiting a resume value
	Identifier value.Value
	Argument   value.Value
}

// ExecutionState is the VM's externally observable status.
type ExecutionState struct {
	Kind    StateKind
	Value   value.Value
	Err     error
	Suspend *SuspendReason
}

type ruleCacheSlot struct {
	computed bool
	value    value.Value
}

// VM is one RegoVM instance. Per spec.md §5, a VM is not safe to share
// across goroutines concurrently; exactly one of the owning goroutine
// (RunToCompletion) or the internal evaluation goroutine (Suspendable,
// between Execute/Resume calls) touches its state at a time.
type VM struct {
	prog  *program.Program
	data  value.Value
	input value.Value

	ruleCache  []ruleCacheSlot
	evaluated  map[string]value.Value
	inProgress map[int32]bool
	pathIndex  map[string]int32

	maxInstructions      int64
	executedInstructions int64

	timer            *timelimit.Timer
	localTimerConfig *timelimit.Config

	breakpoints map[int32]bool
	stepMode    bool

	mode                ExecutionMode
	strictBuiltinErrors bool

	hostAwaitResponses map[string]value.Value

	// Diagnostics (SPEC_FULL.md §4.10). coverage is nil unless coverage
	// collection is enabled; prints is nil unless a print collector has
	// been attached. currentFrame/lastPC track the most recently
	// dispatched frame/PC so Snapshot can report them without the run
	// loop threading a frame pointer through every call.
	coverage     map[int32]bool
	prints       *diagnostics.PrintCollector
	currentFrame *frame
	lastPC       int32

	state ExecutionState

	// Suspendable-mode coroutine plumbing. resumeCh carries the value
	// (or zero Value) the host supplies to Resume; eventCh carries
	// every state transition (suspend or terminal) back to the caller
	// of Execute/Resume. mu guards state/running against the rare
	// caller mistake of calling Execute/Resume concurrently.
	mu       sync.Mutex
	running  bool
	resumeCh chan value.Value
	eventCh  chan ExecutionState
}

// New constructs an empty VM, ready for LoadProgram.
func New() *VM {
	return &VM{
		data:                value.NewObject(),
		input:               value.NewObject(),
		breakpoints:         make(map[int32]bool),
		hostAwaitResponses:  make(map[string]value.Value),
		strictBuiltinErrors: true,
		timer:               timelimit.NewTimer(timelimit.NewSystemClock()),
		state:               ExecutionState{Kind: StateReady},
	}
}

// NewWithClock constructs a VM using an explicit TimeSource, for
// deterministic timer tests.
func NewWithClock(clock timelimit.TimeSource) *VM {
	vm := New()
	vm.timer = timelimit.NewTimer(clock)
	return vm
}

// LoadProgram attaches p, resolving its builtin table against the
// process-wide registry and sizing per-rule caches, per spec.md §3.3's
// lifecycle description.
func (vm *VM) LoadProgram(p *program.Program) {
	vm.prog = p
	p.InitializeResolvedBuiltins(func(name string) (program.BuiltinFunc, bool) {
		e, ok := builtins.Default().Lookup(name)
		if !ok {
			return nil, false
		}
		return program.BuiltinFunc(e.Fn), true
	})
	vm.ruleCache = make([]ruleCacheSlot, len(p.RuleInfos))
	vm.evaluated = make(map[string]value.Value)
	vm.inProgress = make(map[int32]bool)
	vm.pathIndex = make(map[string]int32, len(p.RuleInfos))
	for i, ri := range p.RuleInfos {
		vm.pathIndex[ri.Path] = int32(i)
	}
	vm.state = ExecutionState{Kind: StateReady}
}

// SetData installs the external data document, rejecting it if any path
// collides with the loaded program's rule_tree (spec.md §3.3).
func (vm *VM) SetData(d value.Value) error {
	if vm.prog != nil && conflictsWithRuleTree(d, vm.prog.RuleTree, nil) {
		return common.NewErrorf(common.CodeRuleDataConflict, "supplied data document conflicts with a compiled rule path")
	}
	vm.data = d
	return nil
}

func conflictsWithRuleTree(data, ruleTree value.Value, prefix []string) bool {
	if ruleTree.Kind() != value.KindObject {
		return false
	}
	for _, k := range ruleTree.ObjectKeys() {
		sub := ruleTree.Get(k)
		path := append(append([]string{}, prefix...), k.String())
		if sub.Kind() != value.KindObject {
			if !data.GetPath(path).IsUndefined() {
				return true
			}
			continue
		}
		if conflictsWithRuleTree(data, sub, path) {
			return true
		}
	}
	return false
}

// SetInput installs the external input document.
func (vm *VM) SetInput(in value.Value) { vm.input = in }

// SetExecutionMode selects RunToCompletion or Suspendable evaluation.
func (vm *VM) SetExecutionMode(m ExecutionMode) { vm.mode = m }

// SetStepMode toggles per-instruction suspension in Suspendable mode.
func (vm *VM) SetStepMode(on bool) { vm.stepMode = on }

// SetMaxInstructions installs an instruction budget; 0 means unlimited.
func (vm *VM) SetMaxInstructions(n int64) { vm.maxInstructions = n }

// SetStrictBuiltinErrors toggles whether builtin/type errors raise
// BuiltinError (true) or yield Undefined (false), per spec.md §4.7.
func (vm *VM) SetStrictBuiltinErrors(strict bool) { vm.strictBuiltinErrors = strict }

// SetExecutionTimerConfig installs an engine-local timer override.
func (vm *VM) SetExecutionTimerConfig(cfg timelimit.Config) { vm.localTimerConfig = &cfg }

// ClearExecutionTimerConfig removes the engine-local override, falling
// back to the process-wide fallback config (spec.md §4.9).
func (vm *VM) ClearExecutionTimerConfig() { vm.localTimerConfig = nil }

// AddBreakpoint marks pc as a suspension point in Suspendable mode.
func (vm *VM) AddBreakpoint(pc int32) { vm.breakpoints[pc] = true }

// RemoveBreakpoint un-marks pc.
func (vm *VM) RemoveBreakpoint(pc int32) { delete(vm.breakpoints, pc) }

// SetHostAwaitResponse pre-scripts a response for a given host-await
// identifier, consulted in RunToCompletion mode (spec.md §4.8).
func (vm *VM) SetHostAwaitResponse(identifier, response value.Value) {
	vm.hostAwaitResponses[identifier.String()] = response
}

// GetExecutionState returns the VM's current status.
func (vm *VM) GetExecutionState() ExecutionState { return vm.state }

// SetCoverageEnabled toggles instruction-coverage tracking, per
// SPEC_FULL.md §4.10's enable_coverage gate. Enabling it resets any
// previously accumulated coverage.
func (vm *VM) SetCoverageEnabled(on bool) {
	if on {
		vm.coverage = make(map[int32]bool)
		return
	}
	vm.coverage = nil
}

// CoverageReport summarizes instruction coverage accumulated since
// coverage tracking was last enabled. Returns nil if coverage tracking
// is off or no program is loaded.
func (vm *VM) CoverageReport() *diagnostics.CoverageReport {
	if vm.coverage == nil || vm.prog == nil {
		return nil
	}
	return diagnostics.NewCoverageReport(int32(len(vm.prog.Instructions)), vm.coverage)
}

// SetPrintCollector attaches c to capture print() builtin output
// (SPEC_FULL.md §4.10's gather_prints gate). Pass nil to stop
// capturing.
func (vm *VM) SetPrintCollector(c *diagnostics.PrintCollector) { vm.prints = c }

// TakePrints drains the attached print collector, or returns nil if
// none is attached.
func (vm *VM) TakePrints() []string {
	if vm.prints == nil {
		return nil
	}
	return vm.prints.Take()
}

// Snapshot reports the VM's state as of the most recently dispatched
// instruction: its PC, the active frame's register window, and its
// control-stack depths, per SPEC_FULL.md §4.10. Intended for use while
// StateSuspended (e.g. from a step-mode or breakpoint suspension);
// outside of that it reflects whatever frame last ran.
func (vm *VM) Snapshot() diagnostics.DebugSnapshot {
	if vm.currentFrame == nil {
		return diagnostics.DebugSnapshot{PC: -1, ExecutionState: vm.state.Kind.String()}
	}
	return diagnostics.DebugSnapshot{
		PC:                 vm.lastPC,
		Registers:          append([]value.Value(nil), vm.currentFrame.registers...),
		LoopDepth:          len(vm.currentFrame.loopStack),
		ComprehensionDepth: len(vm.currentFrame.compStack),
		ExecutionState:     vm.state.Kind.String(),
	}
}
