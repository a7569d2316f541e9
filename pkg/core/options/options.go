//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package options provides functional options for configuring
// compilation and RegoVM execution, mirroring the teacher's
// EngineOptions/AuthzOptions split: [CompileOptions] configures a
// compilation (build-time, analogous to the teacher's engine
// initialization options) while [RuntimeOptions] configures one
// execution (per-call, analogous to the teacher's AuthzOptions such
// as probe mode).
package options

import "time"

// CompileOptions holds configuration applied when compiling Rego
// source into a Program.
//
// CompileOptions is typically not constructed directly; NewCompileOptions
// builds one from the functional option functions below.
// pkg/core/compiler.Compile and pkg/core/rego.NewCompiler take their own
// option types, not these.
type CompileOptions struct {
	RegoV0     bool
	Coverage   bool
	TargetName string
}

// CompileOptionFunc is a functional option for [CompileOptions].
type CompileOptionFunc func(*CompileOptions)

// WithRegoV0 toggles the rego.v0 parsing/semantics flag recorded in
// the compiled Program's metadata.
func WithRegoV0(v bool) CompileOptionFunc {
	return func(o *CompileOptions) { o.RegoV0 = v }
}

// WithCoverage toggles coverage instrumentation metadata on the
// compiled Program (SPEC_FULL.md §4.10).
func WithCoverage(v bool) CompileOptionFunc {
	return func(o *CompileOptions) { o.Coverage = v }
}

// WithTargetName records an optional compilation target name.
func WithTargetName(name string) CompileOptionFunc {
	return func(o *CompileOptions) { o.TargetName = name }
}

// NewCompileOptions applies opts over the zero value, for callers that
// need to translate this package's options into another package's
// (e.g. pkg/core/compiler.OptionFunc) own option values.
func NewCompileOptions(opts ...CompileOptionFunc) CompileOptions {
	var o CompileOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// RuntimeOptions holds configuration applied to one RegoVM execution.
type RuntimeOptions struct {
	MaxInstructions     int64
	StrictBuiltinErrors bool
	TimeLimit           time.Duration
	CheckInterval       uint32
	GatherPrints        bool
	EnableCoverage      bool
	StepMode            bool
}

// RuntimeOptionFunc is a functional option for [RuntimeOptions].
type RuntimeOptionFunc func(*RuntimeOptions)

// SetMaxInstructions installs an instruction budget; 0 means
// unlimited.
func SetMaxInstructions(n int64) RuntimeOptionFunc {
	return func(o *RuntimeOptions) { o.MaxInstructions = n }
}

// SetStrictBuiltinErrors toggles whether a builtin/arithmetic type
// mismatch raises BuiltinError (true) or yields Undefined (false),
// per spec.md §4.7.
func SetStrictBuiltinErrors(strict bool) RuntimeOptionFunc {
	return func(o *RuntimeOptions) { o.StrictBuiltinErrors = strict }
}

// SetTimeLimit installs an execution-time budget, per spec.md §4.9. A
// zero limit or checkInterval leaves the timer uninstalled.
func SetTimeLimit(limit time.Duration, checkInterval uint32) RuntimeOptionFunc {
	return func(o *RuntimeOptions) {
		o.TimeLimit = limit
		o.CheckInterval = checkInterval
	}
}

// SetGatherPrints enables print() capture for the execution.
func SetGatherPrints(enable bool) RuntimeOptionFunc {
	return func(o *RuntimeOptions) { o.GatherPrints = enable }
}

// SetCoverageEnabled enables instruction-coverage tracking for the
// execution.
func SetCoverageEnabled(enable bool) RuntimeOptionFunc {
	return func(o *RuntimeOptions) { o.EnableCoverage = enable }
}

// SetStepMode enables per-instruction suspension in Suspendable mode.
func SetStepMode(enable bool) RuntimeOptionFunc {
	return func(o *RuntimeOptions) { o.StepMode = enable }
}

// NewRuntimeOptions applies opts over defaults matching rvm.New's own
// defaults (strict builtin errors on, everything else off).
func NewRuntimeOptions(opts ...RuntimeOptionFunc) RuntimeOptions {
	o := RuntimeOptions{StrictBuiltinErrors: true}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
