//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"bytes"
	"testing"
	"time"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/compiler"
	"github.com/manetu/rego-rvm/pkg/core/diagnostics"
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/timelimit"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src string, entry string) *program.Program {
	t.Helper()
	m, err := ast.Parse("test.rego", src, ast.ParserOptions{})
	require.NoError(t, err)
	prog, err := compiler.Compile([]*ast.Module{m}, nil, []string{entry})
	require.NoError(t, err)
	return prog
}

func newLoadedVM(t *testing.T, prog *program.Program) *VM {
	t.Helper()
	vm := New()
	vm.LoadProgram(prog)
	return vm
}

func jsonValue(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := value.ParseJSON([]byte(src))
	require.NoError(t, err)
	return v
}

// Scenario 1 (spec.md §8): default substitution applies only when the
// body rule's result register is still Undefined at RuleReturn.
func TestExecuteDefaultRuleSubstitution(t *testing.T) {
	prog := compileSrc(t, `package demo

default allow = false

allow if {
	input.user == "alice"
}
`, "data.demo.allow")

	vm := newLoadedVM(t, prog)
	vm.SetInput(jsonValue(t, `{"user": "bob"}`))
	state, err := vm.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state.Kind)
	assert.False(t, state.Value.Bool())

	vm2 := newLoadedVM(t, prog)
	vm2.SetInput(jsonValue(t, `{"user": "alice"}`))
	state2, err := vm2.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state2.Kind)
	assert.True(t, state2.Value.Bool())
}

// Scenario 2 (spec.md §8): a partial-set rule with a wildcard loop and
// a filter statement collects only the elements that satisfy it.
func TestExecutePartialSetFiltersElements(t *testing.T) {
	prog := compileSrc(t, `package demo

big_items contains x if {
	x := input.items[_]
	x > 2
}
`, "data.demo.big_items")

	vm := newLoadedVM(t, prog)
	vm.SetInput(jsonValue(t, `{"items": [1, 2, 3, 4]}`))
	state, err := vm.ExecuteEntryPointByName("data.demo.big_items")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state.Kind)
	assert.Equal(t, 2, state.Value.Len())
	assert.True(t, state.Value.Contains(value.NewInt(3)))
	assert.True(t, state.Value.Contains(value.NewInt(4)))
}

// Scenario 3 (spec.md §8): array destructuring binds both elements and
// a subsequent equality test observes them.
func TestExecuteArrayDestructuring(t *testing.T) {
	prog := compileSrc(t, `package demo

first_two_equal if {
	[a, b] := input.pair
	a == b
}
`, "data.demo.first_two_equal")

	vm := newLoadedVM(t, prog)
	vm.SetInput(jsonValue(t, `{"pair": [5, 5]}`))
	state, err := vm.ExecuteEntryPointByName("data.demo.first_two_equal")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state.Kind)
	assert.True(t, state.Value.Bool())

	vm2 := newLoadedVM(t, prog)
	vm2.SetInput(jsonValue(t, `{"pair": [5, 6]}`))
	state2, err := vm2.ExecuteEntryPointByName("data.demo.first_two_equal")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state2.Kind)
	assert.True(t, state2.Value.IsUndefined())
}

// Scenario 4 (spec.md §8): a host-await call suspends in Suspendable
// mode and resumes with the host-supplied value.
func TestSuspendableHostAwaitResumes(t *testing.T) {
	prog := program.New()
	prog.Instructions = []isa.Instruction{
		{Op: isa.OpRuleInit, A: 0, B: 0},        // pc 0
		{Op: isa.OpLoad, A: 2, B: 0},             // pc 1: reg2 = "fetch-user"
		{Op: isa.OpHostAwait, A: 1, B: 2, C: 3},  // pc 2: reg1 = await(reg2, reg3)
		{Op: isa.OpMove, A: 0, B: 1},             // pc 3: result = reg1
		{Op: isa.OpRuleReturn},                   // pc 4
	}
	prog.Literals = []value.Value{value.NewString("fetch-user")}
	prog.RuleInfos = []program.RuleInfo{
		{Path: "data.demo.fetched", ResultRegister: 0, RegisterWindowSize: 4, BodyPCs: []int32{0, 1, 2, 3, 4}, IsComplete: true},
	}
	prog.EntryPoints = map[string]int32{"data.demo.fetched": 0}
	prog.EntryOrder = []string{"data.demo.fetched"}

	vm := New()
	vm.LoadProgram(prog)
	vm.SetExecutionMode(Suspendable)

	state, err := vm.ExecuteEntryPointByName("data.demo.fetched")
	require.NoError(t, err)
	require.Equal(t, StateSuspended, state.Kind)
	require.NotNil(t, state.Suspend)
	assert.Equal(t, SuspendHostAwait, state.Suspend.Kind)
	assert.Equal(t, "fetch-user", state.Suspend.Identifier.String())

	final, err := vm.Resume(value.NewString("alice"))
	require.NoError(t, err)
	require.Equal(t, StateCompleted, final.Kind)
	assert.Equal(t, "alice", final.Value.String())
}

// Scenario 5 (spec.md §8): installing a data document that collides
// with a compiled rule path is rejected at the VM boundary too, not
// just at compile time.
func TestSetDataRejectsRuleConflict(t *testing.T) {
	prog := compileSrc(t, `package demo

allow if {
	input.user == "alice"
}
`, "data.demo.allow")

	vm := newLoadedVM(t, prog)
	err := vm.SetData(jsonValue(t, `{"demo": {"allow": true}}`))
	require.Error(t, err)
}

// Scenario 6 (spec.md §8): the execution-time limiter aborts a run once
// its configured budget elapses, using a FakeClock for determinism.
func TestExecutionTimeLimitExceeded(t *testing.T) {
	prog := compileSrc(t, `package demo

allow if {
	input.user == "alice"
}
`, "data.demo.allow")

	clock := timelimit.NewFakeClock()
	vm := NewWithClock(clock)
	vm.LoadProgram(prog)
	vm.SetInput(jsonValue(t, `{"user": "alice"}`))
	vm.SetExecutionTimerConfig(timelimit.Config{Limit: 1 * time.Nanosecond, CheckInterval: 1})
	vm.SetExecutionMode(Suspendable)
	vm.SetStepMode(true)

	// Step-suspend before the first instruction's Tick runs (runFrame
	// checks step_mode before ticking the timer), advance the fake
	// clock past the configured limit, then let that instruction's
	// Tick observe the overrun on resume.
	state, err := vm.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)
	require.Equal(t, StateSuspended, state.Kind)
	require.Equal(t, SuspendStep, state.Suspend.Kind)

	clock.Advance(1 * time.Second)

	for state.Kind == StateSuspended {
		state, err = vm.Resume(value.Undefined())
		require.NoError(t, err)
	}
	assert.Equal(t, StateError, state.Kind)
	require.Error(t, state.Err)
}

// SPEC_FULL.md §4.10: enabling coverage tracking records which
// instructions a run actually dispatched, and CoverageReport reports
// the gap against the compiled program's full instruction count.
func TestCoverageReportTracksDispatchedInstructions(t *testing.T) {
	prog := compileSrc(t, `package demo

default allow = false

allow if {
	input.user == "alice"
}
`, "data.demo.allow")

	vm := newLoadedVM(t, prog)
	vm.SetCoverageEnabled(true)
	vm.SetInput(jsonValue(t, `{"user": "bob"}`))
	_, err := vm.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)

	report := vm.CoverageReport()
	require.NotNil(t, report)
	assert.Less(t, report.Percent(), float64(100))
	assert.NotEmpty(t, report.Uncovered())
}

// SPEC_FULL.md §4.10: print() output is captured by the attached
// PrintCollector (and forwarded to its Sink) only while gather_prints
// is effectively enabled (a collector is attached); it never raises a
// BuiltinError regardless of strict_builtin_errors.
func TestPrintCollectorCapturesPrintOutput(t *testing.T) {
	prog := compileSrc(t, `package demo

allow if {
	print("checking", input.user)
	input.user == "alice"
}
`, "data.demo.allow")

	buf := &bytes.Buffer{}
	sink, err := diagnostics.NewWriterFactory(buf).NewSink()
	require.NoError(t, err)
	collector := diagnostics.NewPrintCollector(sink)

	vm := newLoadedVM(t, prog)
	vm.SetPrintCollector(collector)
	vm.SetInput(jsonValue(t, `{"user": "alice"}`))
	state, err := vm.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state.Kind)
	assert.True(t, state.Value.Bool())

	lines := vm.TakePrints()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "alice")
	assert.Contains(t, buf.String(), "alice")
}

// SPEC_FULL.md §4.10: Snapshot reports the PC and register window of
// the frame suspended mid-evaluation in step mode.
func TestSnapshotReflectsSuspendedFrame(t *testing.T) {
	prog := compileSrc(t, `package demo

allow if {
	input.user == "alice"
}
`, "data.demo.allow")

	vm := newLoadedVM(t, prog)
	vm.SetInput(jsonValue(t, `{"user": "alice"}`))
	vm.SetExecutionMode(Suspendable)
	vm.SetStepMode(true)

	state, err := vm.ExecuteEntryPointByName("data.demo.allow")
	require.NoError(t, err)
	require.Equal(t, StateSuspended, state.Kind)

	snap := vm.Snapshot()
	assert.GreaterOrEqual(t, snap.PC, int32(0))
	assert.NotEmpty(t, snap.Registers)
	assert.Equal(t, "suspended", snap.ExecutionState)
}
