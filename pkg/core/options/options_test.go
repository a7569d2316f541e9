//
//  Copyright © Manetu Inc. All rights reserved.
//

package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCompileOptionsDefaults(t *testing.T) {
	o := NewCompileOptions()
	assert.False(t, o.RegoV0)
	assert.False(t, o.Coverage)
	assert.Empty(t, o.TargetName)
}

func TestNewCompileOptionsApplied(t *testing.T) {
	o := NewCompileOptions(WithRegoV0(true), WithCoverage(true), WithTargetName("rvm"))
	assert.True(t, o.RegoV0)
	assert.True(t, o.Coverage)
	assert.Equal(t, "rvm", o.TargetName)
}

func TestNewRuntimeOptionsDefaults(t *testing.T) {
	o := NewRuntimeOptions()
	assert.True(t, o.StrictBuiltinErrors)
	assert.Zero(t, o.MaxInstructions)
	assert.Zero(t, o.TimeLimit)
}

func TestNewRuntimeOptionsApplied(t *testing.T) {
	o := NewRuntimeOptions(
		SetMaxInstructions(1000),
		SetStrictBuiltinErrors(false),
		SetTimeLimit(5*time.Second, 100),
		SetGatherPrints(true),
		SetCoverageEnabled(true),
		SetStepMode(true),
	)
	assert.Equal(t, int64(1000), o.MaxInstructions)
	assert.False(t, o.StrictBuiltinErrors)
	assert.Equal(t, 5*time.Second, o.TimeLimit)
	assert.Equal(t, uint32(100), o.CheckInterval)
	assert.True(t, o.GatherPrints)
	assert.True(t, o.EnableCoverage)
	assert.True(t, o.StepMode)
}
