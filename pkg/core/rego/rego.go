//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package rego provides a Compiler/Ast facade over this module's own
// compiler+program+rvm stack, shaped after the teacher's pkg/core/opa
// package (same Compiler/Ast naming, the same functional-options
// idiom for compile- and evaluation-time configuration) but backed
// entirely by SPEC_FULL.md's own pipeline rather than the real OPA
// library — see DESIGN.md for why the teacher's actual OPA dependency
// is not reused here.
//
// # Compiler
//
// The [Compiler] compiles one or more Rego modules into an executable
// [Ast]:
//
//	compiler := rego.NewCompiler(rego.WithCoverage(true))
//	ast, err := compiler.Compile("policy", rego.Modules{
//	    "policy.rego": policySource,
//	}, nil, []string{"data.policy.allow"})
//
// # Evaluation
//
// The compiled [Ast] evaluates an entry point against input data:
//
//	result, err := ast.Evaluate(ctx, "data.policy.allow", input)
package rego

import (
	"context"

	"github.com/manetu/rego-rvm/internal/logging"
	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/compiler"
	"github.com/manetu/rego-rvm/pkg/core/diagnostics"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/rvm"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/mohae/deepcopy"
)

var logger = logging.GetLogger("rego")
var agent = "rego"

// Modules maps module names to their Rego source code, mirroring
// opa.Modules.
type Modules map[string]string

// CompilerOptions holds configuration for [NewCompiler], mirroring the
// shape of opa.CompilerOptions.
type CompilerOptions struct {
	enableCoverage bool
	gatherPrints   bool
	printSink      diagnostics.Sink
	trace          bool
}

// CompilerOptionFunc is a functional option for [NewCompiler] / [Compiler.Clone].
type CompilerOptionFunc func(*CompilerOptions)

// WithCoverage enables instruction-coverage tracking on every Ast this
// Compiler produces (SPEC_FULL.md §4.10).
func WithCoverage(enable bool) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.enableCoverage = enable }
}

// WithGatherPrints enables print() capture on every Ast this Compiler
// produces, forwarding captured lines to sink (a nil sink only
// buffers for Take).
func WithGatherPrints(enable bool, sink diagnostics.Sink) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.gatherPrints = enable
		o.printSink = sink
	}
}

// WithDefaultTracing records the default trace setting for evaluations
// against Asts this Compiler produces. Evaluate produces no trace
// output from this setting.
func WithDefaultTracing(trace bool) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.trace = trace }
}

// Compiler compiles Rego source into executable [Ast] objects.
type Compiler struct {
	options *CompilerOptions
}

// NewCompiler creates a new Compiler. Default configuration disables
// coverage and print gathering and sets tracing from the logger's
// current level, matching opa.NewCompiler's "trace follows log level"
// default.
func NewCompiler(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{trace: logger.IsTraceEnabled()}
	for _, o := range options {
		o(opts)
	}
	return &Compiler{options: opts}
}

// Clone creates a new Compiler based on the current configuration,
// deep-copying the options struct so the clone can be modified
// independently — mirroring opa.Compiler.Clone's use of
// github.com/mohae/deepcopy for the same purpose.
func (c *Compiler) Clone(options ...CompilerOptionFunc) *Compiler {
	opts := deepcopy.Copy(c.options).(*CompilerOptions)
	for _, o := range options {
		o(opts)
	}
	return &Compiler{options: opts}
}

// Ast represents a compiled Rego policy ready for evaluation.
type Ast struct {
	name    string
	prog    *program.Program
	options *CompilerOptions
}

// Compile parses and compiles modules into an executable [Ast].
// entryPoints lists the fully-qualified rule paths (e.g.
// "data.policy.allow") the resulting Ast can evaluate; dataJSON, if
// non-nil, seeds the program's static data document.
func (c *Compiler) Compile(name string, modules Modules, dataJSON []byte, entryPoints []string) (*Ast, error) {
	logger.Debug(agent, "Compile", "Enter")
	defer logger.Debug(agent, "Compile", "Exit")

	parsed := make([]*ast.Module, 0, len(modules))
	for file, src := range modules {
		m, err := ast.Parse(file, src, ast.ParserOptions{})
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, m)
	}

	var opts []compiler.OptionFunc
	if c.options.enableCoverage {
		opts = append(opts, compiler.WithCoverage(true))
	}

	prog, err := compiler.Compile(parsed, dataJSON, entryPoints, opts...)
	if err != nil {
		return nil, err
	}

	return &Ast{name: name, prog: prog, options: c.options}, nil
}

// EvalOptions holds configuration for one [Ast.Evaluate] call.
type EvalOptions struct {
	trace bool
	input value.Value
}

// EvalOptionFunc is a functional option for [Ast.Evaluate].
type EvalOptionFunc func(*EvalOptions)

// WithTrace records a trace setting for a single evaluation. Evaluate
// produces no trace output from this setting.
func WithTrace(trace bool) EvalOptionFunc {
	return func(o *EvalOptions) { o.trace = trace }
}

// WithInput sets the input document for this evaluation directly as a
// [value.Value], bypassing the JSON round-trip [Ast.Evaluate] performs
// on its interface{} parameter.
func WithInput(v value.Value) EvalOptionFunc {
	return func(o *EvalOptions) { o.input = v }
}

// Evaluate loads the Ast's Program into a fresh [rvm.VM] and runs
// entryPoint to completion, returning its result value.
//
// A fresh VM per call matches SPEC_FULL.md §5's one-VM-per-evaluation
// model: the compiled Program is shared read-only across concurrent
// Evaluate calls, but each call gets its own register state and
// rule_cache.
func (a *Ast) Evaluate(ctx context.Context, entryPoint string, input interface{}, options ...EvalOptionFunc) (value.Value, *common.EngineError) {
	logger.Debug(agent, "Evaluate", "Enter")
	defer logger.Debug(agent, "Evaluate", "Exit")

	opts := &EvalOptions{trace: a.options.trace}
	for _, o := range options {
		o(opts)
	}
	if opts.input.IsUndefined() {
		opts.input = value.FromJSON(input)
	}

	vm := rvm.New()
	vm.LoadProgram(a.prog)
	vm.SetInput(opts.input)
	if a.options.enableCoverage {
		vm.SetCoverageEnabled(true)
	}
	if a.options.gatherPrints {
		vm.SetPrintCollector(diagnostics.NewPrintCollector(a.options.printSink))
	}

	state, err := vm.ExecuteEntryPointByName(entryPoint)
	if err != nil {
		if ee, ok := err.(*common.EngineError); ok {
			return value.Undefined(), ee
		}
		return value.Undefined(), common.NewErrorf(common.CodeInternal, "%v", err)
	}
	switch state.Kind {
	case rvm.StateCompleted:
		return state.Value, nil
	case rvm.StateError:
		if ee, ok := state.Err.(*common.EngineError); ok {
			return value.Undefined(), ee
		}
		return value.Undefined(), common.NewErrorf(common.CodeInternal, "%v", state.Err)
	default:
		return value.Undefined(), common.NewErrorf(common.CodeInternal, "unexpected evaluation state %q for a run-to-completion Evaluate call", state.Kind)
	}
}

// Program exposes the compiled Program backing this Ast, for hosts
// that want to serialize it (pkg/core/program.Program.SerializeBinary)
// or hand it to their own [rvm.VM] directly.
func (a *Ast) Program() *program.Program { return a.prog }
