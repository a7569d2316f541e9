//
//  Copyright © Manetu Inc. All rights reserved.
//

package config_test

import (
	"sync"
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/config"
	"github.com/stretchr/testify/assert"
)

func TestInitConfig(t *testing.T) {
	config.ResetConfig()
	assert.NotNil(t, config.VConfig)
}

func TestConfigDefaults(t *testing.T) {
	config.ResetConfig()

	assert.Equal(t, uint32(100), uint32(config.VConfig.GetInt(config.ExecutionCheckInterval)))
	assert.Equal(t, 9000, config.VConfig.GetInt(config.ServePort))
	assert.False(t, config.VConfig.GetBool(config.DiagnosticsCoverage))
	assert.False(t, config.VConfig.GetBool(config.DiagnosticsGatherPrints))
}

func TestConfigOverride(t *testing.T) {
	config.ResetConfig()

	config.VConfig.Set(config.ExecutionTimeLimit, "5s")
	config.VConfig.Set(config.DiagnosticsCoverage, true)

	assert.Equal(t, "5s", config.VConfig.GetString(config.ExecutionTimeLimit))
	assert.True(t, config.VConfig.GetBool(config.DiagnosticsCoverage))
}

// TestConcurrentLoad tests that concurrent calls to Load() are race-free.
// Run with: go test -race -run TestConcurrentLoad
func TestConcurrentLoad(t *testing.T) {
	const numGoroutines = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	config.ResetConfig()

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			err := config.Load()
			assert.Nil(t, err)
		}()
	}

	wg.Wait()
}
