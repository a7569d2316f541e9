//
//  Copyright © Manetu Inc. All rights reserved.
//

package main

import (
	"context"
	"log"
	"os"

	"github.com/manetu/rego-rvm/cmd/rvm/subcommands/build"
	"github.com/manetu/rego-rvm/cmd/rvm/subcommands/lint"
	"github.com/manetu/rego-rvm/cmd/rvm/subcommands/serve"
	"github.com/manetu/rego-rvm/cmd/rvm/subcommands/test"
	"github.com/manetu/rego-rvm/internal/logging"
	"github.com/manetu/rego-rvm/pkg/core/config"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("rvm")

func main() {
	if err := config.Load(); err != nil {
		log.Fatal(err)
	}

	cmd := &cli.Command{
		Name:  "rvm",
		Usage: "A CLI for compiling and executing Rego policy with RegoVM",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "trace",
				Aliases: []string{"t"},
				Usage:   "Global trace switch, defaulted from the logger's trace level; no subcommand reads it",
				Value:   logger.IsTraceEnabled(),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Compile one or more Rego modules and an optional data document into a Program artifact",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Rego source file to compile. Can be specified multiple times.",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Load the static data document from `FILE` (JSON or YAML)",
					},
					&cli.StringSliceFlag{
						Name:     "entrypoint",
						Aliases:  []string{"e"},
						Usage:    "Fully-qualified rule path to expose as an entry point (e.g. data.policy.allow). Can be specified multiple times.",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output path for the serialized Program artifact",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "coverage",
						Usage: "Embed coverage instrumentation metadata in the compiled Program",
					},
				},
				Action: build.Execute,
			},
			{
				Name:  "lint",
				Usage: "Parse and compile Rego files, reporting syntax and compilation errors",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Rego source file to lint. Can be specified multiple times.",
						Required: true,
					},
				},
				Action: lint.Execute,
			},
			{
				Name:  "test",
				Usage: "Execute a compiled Program against an input document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "program",
						Aliases:  []string{"p"},
						Usage:    "Path to the compiled Program artifact to load",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "entrypoint",
						Aliases:  []string{"e"},
						Usage:    "Fully-qualified rule path to evaluate",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Load the input document from `FILE` (JSON), or '-' for stdin",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log the final execution state at debug level",
					},
					&cli.BoolFlag{
						Name:  "step",
						Usage: "Single-step through execution in Suspendable mode, printing a debug snapshot at each instruction",
					},
					&cli.Int64Flag{
						Name:  "max-instructions",
						Usage: "Fail the evaluation once this many instructions have been dispatched (0 = unlimited)",
					},
					&cli.BoolFlag{
						Name:  "listing",
						Usage: "Print the Program's human-readable instruction listing before executing",
					},
				},
				Action: test.Execute,
			},
			{
				Name:  "serve",
				Usage: "Serve a compiled Program over HTTP, one VM instance per request",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The TCP port to serve on",
						Value: config.VConfig.GetInt(config.ServePort),
					},
					&cli.StringFlag{
						Name:     "program",
						Aliases:  []string{"p"},
						Usage:    "Path to the compiled Program artifact to serve",
						Required: true,
					},
				},
				Action: serve.Execute,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
