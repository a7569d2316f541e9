//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package build implements `rvm build`, compiling Rego source files and
// an optional data document into a serialized Program artifact, the CLI
// counterpart of [rego.Compiler.Compile] + Program.SerializeBinary.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/manetu/rego-rvm/pkg/core/rego"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Execute runs the build command: load Rego modules, an optional data
// document, compile, and serialize the resulting Program to --output.
func Execute(ctx context.Context, cmd *cli.Command) error {
	files := cmd.StringSlice("file")
	entryPoints := cmd.StringSlice("entrypoint")
	output := cmd.String("output")

	modules, err := loadModules(files)
	if err != nil {
		return err
	}

	dataJSON, err := loadData(cmd.String("data"))
	if err != nil {
		return err
	}

	compiler := rego.NewCompiler(rego.WithCoverage(cmd.Bool("coverage")))
	ast, err := compiler.Compile(output, modules, dataJSON, entryPoints)
	if err != nil {
		return errors.Wrap(err, "error compiling Rego modules")
	}

	encoded, err := ast.Program().SerializeBinary()
	if err != nil {
		return errors.Wrap(err, "error serializing Program")
	}

	if err := os.WriteFile(output, encoded, 0600); err != nil {
		return errors.Wrap(err, "error writing Program artifact")
	}

	fmt.Printf("Compiled %d module(s), %d entry point(s) → %s\n", len(modules), len(entryPoints), output)
	return nil
}

// loadModules reads each Rego source file into a rego.Modules map keyed
// by file name.
func loadModules(files []string) (rego.Modules, error) {
	modules := make(rego.Modules, len(files))
	for _, file := range files {
		src, err := os.ReadFile(file) // #nosec G304 -- CLI tool intentionally reads user-provided paths
		if err != nil {
			return nil, errors.Wrapf(err, "error reading Rego file %q", file)
		}
		modules[file] = string(src)
	}
	return modules, nil
}

// loadData reads the data document from path, accepting either JSON or
// YAML (detected by extension; YAML is transcoded to JSON since the
// compiler's data-seeding parameter is JSON-only).
func loadData(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, errors.Wrapf(err, "error reading data file %q", path)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrapf(err, "error parsing YAML data file %q", path)
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "error converting YAML data file %q to JSON", path)
		}
		return encoded, nil
	}

	return raw, nil
}
