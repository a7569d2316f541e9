//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package test implements `rvm test`, loading a serialized Program and
// executing one entry point against an input document, optionally
// single-stepping through it in Suspendable mode and printing a debug
// snapshot at each instruction (SPEC_FULL.md §4.10's DebugSnapshot).
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/manetu/rego-rvm/internal/logging"
	"github.com/manetu/rego-rvm/pkg/core/diagnostics"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/rvm"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("test")

// Execute runs the test command with the provided context and CLI command.
func Execute(ctx context.Context, cmd *cli.Command) error {
	prog, err := loadProgram(cmd.String("program"))
	if err != nil {
		return err
	}

	if cmd.Bool("listing") {
		fmt.Print(prog.GenerateListing())
		fmt.Println("---")
	}

	input, err := loadInput(cmd.String("input"))
	if err != nil {
		return err
	}

	vm := rvm.New()
	vm.LoadProgram(prog)
	vm.SetInput(input)

	if n := cmd.Int64("max-instructions"); n > 0 {
		vm.SetMaxInstructions(n)
	}

	step := cmd.Bool("step")
	trace := cmd.Bool("trace")
	if step {
		vm.SetExecutionMode(rvm.Suspendable)
		vm.SetStepMode(true)
	}

	entryPoint := cmd.String("entrypoint")
	state, err := vm.ExecuteEntryPointByName(entryPoint)
	if err != nil {
		return errors.Wrap(err, "error executing entry point")
	}

	for state.Kind == rvm.StateSuspended {
		printSnapshot(vm.Snapshot())
		state, err = vm.Resume(value.Undefined())
		if err != nil {
			return errors.Wrap(err, "error resuming suspended execution")
		}
	}

	if trace {
		logger.Debugf("test", "execute", "dispatched final state %s", state.Kind)
	}

	switch state.Kind {
	case rvm.StateCompleted:
		return printResult(state.Value)
	case rvm.StateError:
		return errors.Wrap(state.Err, "evaluation failed")
	default:
		return fmt.Errorf("unexpected final execution state %q", state.Kind)
	}
}

func loadProgram(path string) (*program.Program, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Program artifact %q", path)
	}
	prog, isPartial, _, err := program.DeserializeBinary(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error deserializing Program artifact %q", path)
	}
	if isPartial {
		return nil, fmt.Errorf("Program artifact %q is truncated", path)
	}
	return prog, nil
}

func loadInput(path string) (value.Value, error) {
	if path == "" {
		return value.NewObject(), nil
	}

	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	}
	if err != nil {
		return value.Undefined(), errors.Wrapf(err, "error reading input document %q", path)
	}

	v, err := value.ParseJSON(raw)
	if err != nil {
		return value.Undefined(), errors.Wrapf(err, "error parsing input document %q", path)
	}
	return v, nil
}

func printResult(v value.Value) error {
	encoded, err := json.MarshalIndent(v.ToInterface(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshaling result")
	}
	fmt.Println(string(encoded))
	return nil
}

func printSnapshot(s diagnostics.DebugSnapshot) {
	fmt.Fprintf(os.Stderr, "; pc=%d state=%s loop_depth=%d comprehension_depth=%d registers=%d\n",
		s.PC, s.ExecutionState, s.LoopDepth, s.ComprehensionDepth, len(s.Registers))
}
