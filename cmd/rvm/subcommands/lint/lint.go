//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package lint implements `rvm lint`, parsing and compiling Rego files
// standalone (no entry points, no data document) to surface syntax and
// compilation errors, in the reporting style of the teacher's own lint
// subcommand (per-file ✓/✗ lines, a summary count, non-zero exit on
// failure) but backed by this module's own parser/compiler instead of
// `opa check`/regal.
package lint

import (
	"context"
	"fmt"
	"os"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/compiler"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// Execute runs the lint command with the provided context and CLI command.
func Execute(ctx context.Context, cmd *cli.Command) error {
	files := cmd.StringSlice("file")

	fmt.Println("Linting Rego files...")
	fmt.Println()

	errorCount := 0
	modules := make([]*ast.Module, 0, len(files))
	for _, file := range files {
		m, err := lintFile(file)
		if err != nil {
			fmt.Printf("✗ %s\n", file)
			fmt.Printf("  Error: %s\n", err)
			errorCount++
			continue
		}
		fmt.Printf("✓ %s: Valid Rego\n", file)
		modules = append(modules, m)
	}

	if errorCount == 0 && len(modules) > 0 {
		if _, err := compiler.Compile(modules, nil, nil); err != nil {
			fmt.Printf("✗ compilation\n")
			fmt.Printf("  Error: %s\n", err)
			errorCount++
		}
	}

	fmt.Println("---")
	if errorCount > 0 {
		fmt.Printf("Linting completed: %d file(s) with errors\n", errorCount)
		return fmt.Errorf("linting failed: %d file(s) with errors", errorCount)
	}

	fmt.Printf("All checks passed: %d file(s) validated successfully\n", len(files))
	return nil
}

func lintFile(file string) (*ast.Module, error) {
	src, err := os.ReadFile(file) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	m, err := ast.Parse(file, string(src), ast.ParserOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Rego")
	}
	return m, nil
}
