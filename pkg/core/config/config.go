//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides process-wide configuration for cmd/rvm
// using [Viper], following the teacher's own config-layer shape:
// a global VConfig, file + environment-variable sourcing, and an
// Init/Load split so callers can set defaults before a config file is
// read.
//
// Configuration can be provided via:
//   - A YAML configuration file
//   - Environment variables with the RVM_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default, the CLI looks for rvm-config.yaml in the current
// directory. Override the location with:
//
//	RVM_CONFIG_PATH=/etc/rego-rvm
//	RVM_CONFIG_FILENAME=production-config
//
// Example configuration file:
//
//	log:
//	  level: ".:info"
//	execution:
//	  timelimit: 5s
//	  checkinterval: 100
//	  maxinstructions: 0
//	diagnostics:
//	  coverage: false
//	  gatherprints: false
//	serve:
//	  port: 9000
//
// # Environment Variables
//
// All configuration keys can be set via environment variables with the
// RVM_ prefix. Dots in key names become underscores:
//
//	RVM_LOG_LEVEL=.:debug
//	RVM_EXECUTION_TIMELIMIT=5s
//	RVM_DIAGNOSTICS_COVERAGE=true
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/manetu/rego-rvm/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all rego-rvm environment variables.
	// For example, the key "log.level" becomes RVM_LOG_LEVEL.
	EnvVarPrefix string = "RVM"

	// ConfigPathEnv is the environment variable that specifies the directory
	// containing the configuration file.
	ConfigPathEnv string = "RVM_CONFIG_PATH"

	// ConfigFileNameEnv is the environment variable that specifies the
	// configuration file name (without extension).
	ConfigFileNameEnv string = "RVM_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "rvm-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// ExecutionTimeLimit names the wall-clock budget for one top-level
	// evaluation (a Go duration string, e.g. "5s"), per spec.md §4.9's
	// process-wide fallback timer config. Nothing outside this package
	// reads it, so no timer is installed from it.
	ExecutionTimeLimit string = "execution.timelimit"

	// ExecutionCheckInterval names how many instruction units accumulate
	// between clock reads for the execution-time limiter. Nothing outside
	// this package reads it.
	ExecutionCheckInterval string = "execution.checkinterval"

	// ExecutionMaxInstructions names the cap on instructions a single
	// evaluation may dispatch (zero means unlimited). Nothing outside
	// this package reads it; `rvm test --max-instructions` sets the cap
	// on the VM directly.
	ExecutionMaxInstructions string = "execution.maxinstructions"

	// DiagnosticsCoverage names the default for instruction-coverage
	// tracking (SPEC_FULL.md §4.10). Nothing outside this package reads it.
	DiagnosticsCoverage string = "diagnostics.coverage"

	// DiagnosticsGatherPrints names the default for print() capture.
	// Nothing outside this package reads it.
	DiagnosticsGatherPrints string = "diagnostics.gatherprints"

	// ServePort is the default listen port for `rvm serve`.
	ServePort string = "serve.port"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for cmd/rvm.
	//
	// VConfig is initialized automatically when [Load] or [Init] is
	// called. Use the configuration key constants ([ExecutionTimeLimit],
	// [DiagnosticsCoverage], etc.) to access specific settings:
	//
	//	if config.VConfig.GetBool(config.DiagnosticsCoverage) {
	//	    // coverage tracking on by default
	//	}
	VConfig *viper.Viper
	logger  = logging.GetLogger("config")
)

// Init initializes the configuration system without loading config
// files. Safe to call multiple times; subsequent calls are no-ops.
func Init() {
	once.Do(func() {
		doInitialize()
	})
}

func getConfigPath() string {
	if configPath, ok := os.LookupEnv(ConfigPathEnv); ok {
		return configPath
	}
	return ConfigDefaultPath
}

func getConfigFileName() string {
	if configName, ok := os.LookupEnv(ConfigFileNameEnv); ok {
		return configName
	}
	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	// config-file loading: default is './rvm-config.yaml' but can be
	// overridden with $(RVM_CONFIG_PATH)/$(RVM_CONFIG_FILENAME).yaml
	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// envvar handling: keys such as 'execution.timelimit' become
	// 'RVM_EXECUTION_TIMELIMIT'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(ExecutionCheckInterval, 100)
	VConfig.SetDefault(ServePort, 9000)
}

// Load initializes configuration and loads settings from files and
// environment.
//
// Load performs:
//  1. [Init], if not already called
//  2. Reading the configuration file (if present; missing files are
//     not an error)
//  3. Applying environment variable overrides
//  4. Updating log levels based on the final configuration
//
// Safe to call concurrently; subsequent calls after the first
// successful load are no-ops that return nil.
func Load() error {
	loadOnce.Do(func() {
		Init()

		earlyLoglevel := os.Getenv("RVM_LOG_LEVEL")
		if earlyLoglevel != "" {
			if err := logging.UpdateLogLevels(earlyLoglevel); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", earlyLoglevel, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		err := VConfig.ReadInConfig()
		if err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", loglevel, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig clears all configuration and reinitializes with
// defaults.
//
// WARNING: intended for testing only; resets global state.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	_ = Load()
}
