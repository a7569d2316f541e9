//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package timelimit implements the pluggable execution-time limiter
// described in spec.md §4.9: a monotonic TimeSource, a layered
// engine-local/process-wide configuration, and the timer state machine
// RegoVM consults every check_interval instructions.
package timelimit

import (
	"sync"
	"time"

	"github.com/manetu/rego-rvm/pkg/common"
)

// TimeSource returns a monotonic duration since an implementation-defined
// epoch, or (0, false) when no clock is available.
type TimeSource interface {
	Now() (time.Duration, bool)
}

// SystemClock is the production TimeSource, backed by time.Since against
// the moment NewSystemClock was called.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock epoched at the call site.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now implements TimeSource.
func (c *SystemClock) Now() (time.Duration, bool) {
	return time.Since(c.start), true
}

// FakeClock is a deterministic TimeSource test double.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFakeClock returns a FakeClock starting at zero.
func NewFakeClock() *FakeClock { return &FakeClock{} }

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Now implements TimeSource.
func (c *FakeClock) Now() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, true
}

// Config installs a time budget: limit is the wall-clock ceiling for one
// top-level evaluation, and check_interval governs how many instruction
// "units" accumulate between clock reads.
type Config struct {
	Limit         time.Duration
	CheckInterval uint32
}

// Timer is the per-evaluation state machine described in spec.md §4.9.
type Timer struct {
	clock      TimeSource
	config     Config
	started    bool
	start      time.Duration
	accumUnits uint32
	lastElapsed time.Duration
}

// NewTimer constructs a Timer bound to clock, uninstalled until Start is
// called.
func NewTimer(clock TimeSource) *Timer {
	return &Timer{clock: clock}
}

// Start installs config and records the baseline, resetting counters.
// A zero CheckInterval disables the timer (spec.md requires it
// non-zero when a limit is configured; Start with a zero-value Config
// simply never fires).
func (t *Timer) Start(config Config) {
	t.config = config
	t.accumUnits = 0
	t.lastElapsed = 0
	t.started = config.Limit > 0 && config.CheckInterval > 0
	if t.started {
		if now, ok := t.clock.Now(); ok {
			t.start = now
		}
	}
}

// Tick adds n instruction units to the accumulator and, once
// check_interval is crossed, reads the clock and compares elapsed time
// against the configured limit.
func (t *Timer) Tick(n uint32) error {
	if !t.started {
		return nil
	}
	t.accumUnits += n
	if t.accumUnits < t.config.CheckInterval {
		return nil
	}
	t.accumUnits = 0
	now, ok := t.clock.Now()
	if !ok {
		return nil
	}
	elapsed := now - t.start
	t.lastElapsed = elapsed
	if elapsed > t.config.Limit {
		return common.NewErrorf(common.CodeTimeLimitExceeded, "execution time limit of %s exceeded (elapsed %s)", t.config.Limit, elapsed)
	}
	return nil
}

// Elapsed returns the elapsed duration as of the last Tick that read the
// clock, used to snapshot progress across a suspension (spec.md §4.9:
// "host-side wait time does not count against the budget").
func (t *Timer) Elapsed() time.Duration { return t.lastElapsed }

// Snapshot captures enough state to resume the timer later without
// counting intervening host-side wait time.
type Snapshot struct {
	config     Config
	accumUnits uint32
	baseElapsed time.Duration
}

// Suspend captures a resumable snapshot and stops the timer from firing
// until Resume re-installs it.
func (t *Timer) Suspend() Snapshot {
	return Snapshot{config: t.config, accumUnits: t.accumUnits, baseElapsed: t.lastElapsed}
}

// Resume re-arms the timer from a snapshot, re-basing its start time to
// the current clock reading minus the already-elapsed duration so that
// host wait time is excluded from the budget.
func (t *Timer) Resume(s Snapshot) {
	t.config = s.config
	t.accumUnits = s.accumUnits
	t.lastElapsed = s.baseElapsed
	t.started = s.config.Limit > 0 && s.config.CheckInterval > 0
	if t.started {
		if now, ok := t.clock.Now(); ok {
			t.start = now - s.baseElapsed
		}
	}
}

// FallbackStore holds the process-wide fallback timer configuration
// described in spec.md §4.9, guarded by a mutex since it is global
// mutable state shared across evaluations.
type FallbackStore struct {
	mu  sync.RWMutex
	cfg *Config
}

var fallback = &FallbackStore{}

// Fallback returns the process-wide fallback store.
func Fallback() *FallbackStore { return fallback }

// Set installs the process-wide fallback config.
func (s *FallbackStore) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg
	s.cfg = &c
}

// Clear removes the process-wide fallback config.
func (s *FallbackStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = nil
}

// Get returns the process-wide fallback config, if any.
func (s *FallbackStore) Get() (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return Config{}, false
	}
	return *s.cfg, true
}

// Resolve implements spec.md §4.9's layering: an engine-local override,
// when present, wins over the process-wide fallback; absent both, the
// timer stays uninstalled.
func Resolve(local *Config) (Config, bool) {
	if local != nil {
		return *local, true
	}
	return fallback.Get()
}
