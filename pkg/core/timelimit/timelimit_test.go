//
//  Copyright © Manetu Inc. All rights reserved.
//

package timelimit

import (
	"testing"
	"time"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/stretchr/testify/assert"
)

func TestTimerTicksWithinLimit(t *testing.T) {
	clock := NewFakeClock()
	timer := NewTimer(clock)
	timer.Start(Config{Limit: 10 * time.Second, CheckInterval: 5})

	clock.Advance(1 * time.Second)
	err := timer.Tick(5)
	assert.NoError(t, err)
}

func TestTimerExceedsLimit(t *testing.T) {
	clock := NewFakeClock()
	timer := NewTimer(clock)
	timer.Start(Config{Limit: 1 * time.Second, CheckInterval: 1})

	clock.Advance(2 * time.Second)
	err := timer.Tick(1)
	assert.Error(t, err)
	var ee *common.EngineError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, common.CodeTimeLimitExceeded, ee.Code)
}

func TestTimerBelowCheckIntervalDoesNotReadClock(t *testing.T) {
	clock := NewFakeClock()
	timer := NewTimer(clock)
	timer.Start(Config{Limit: 1 * time.Millisecond, CheckInterval: 100})

	clock.Advance(1 * time.Second)
	err := timer.Tick(1)
	assert.NoError(t, err)
}

func TestSuspendResumeExcludesWaitTime(t *testing.T) {
	clock := NewFakeClock()
	timer := NewTimer(clock)
	timer.Start(Config{Limit: 1 * time.Second, CheckInterval: 1})

	clock.Advance(500 * time.Millisecond)
	assert.NoError(t, timer.Tick(1))

	snap := timer.Suspend()
	clock.Advance(10 * time.Second) // host-side wait, must not count
	timer.Resume(snap)

	clock.Advance(200 * time.Millisecond)
	err := timer.Tick(1)
	assert.NoError(t, err)
}

func TestFallbackLayering(t *testing.T) {
	Fallback().Clear()
	defer Fallback().Clear()

	_, ok := Resolve(nil)
	assert.False(t, ok)

	Fallback().Set(Config{Limit: 5 * time.Second, CheckInterval: 10})
	cfg, ok := Resolve(nil)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, cfg.Limit)

	local := &Config{Limit: 1 * time.Second, CheckInterval: 1}
	cfg, ok = Resolve(local)
	assert.True(t, ok)
	assert.Equal(t, 1*time.Second, cfg.Limit)
}
