//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package diagnostics implements the coverage, print-capture, and
// debug-snapshot facilities described in SPEC_FULL.md §4.10. It is
// consulted only when the corresponding program/VM flag is set
// (EnableCoverage, gather_prints); absent that, a RegoVM pays no cost
// for diagnostics it isn't asked to collect.
package diagnostics

import (
	"sort"
	"sync"

	"github.com/manetu/rego-rvm/pkg/core/value"
)

// PC identifies one instruction offset in a compiled Program.
type PC int32

// CoverageReport summarizes which instructions executed during one or
// more evaluations against a Program of totalPCs instructions, per
// SPEC_FULL.md §4.10's `get_coverage_report` builtin.
type CoverageReport struct {
	total    int32
	executed map[int32]bool
}

// NewCoverageReport builds a report from the set of PCs a RegoVM
// actually dispatched. executed may be nil, producing a 0% report.
func NewCoverageReport(total int32, executed map[int32]bool) *CoverageReport {
	return &CoverageReport{total: total, executed: executed}
}

// Percent returns the fraction of instructions executed, 0 when the
// program has no instructions.
func (r *CoverageReport) Percent() float64 {
	if r == nil || r.total == 0 {
		return 0
	}
	return float64(len(r.executed)) / float64(r.total) * 100
}

// Uncovered lists every instruction offset that never executed, in
// ascending order.
func (r *CoverageReport) Uncovered() []PC {
	if r == nil {
		return nil
	}
	out := make([]PC, 0, int(r.total)-len(r.executed))
	for pc := int32(0); pc < r.total; pc++ {
		if !r.executed[pc] {
			out = append(out, PC(pc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sink is where a PrintCollector forwards captured print() output,
// mirroring the Factory/Stream pattern the teacher's access log uses
// (pkg/core/accesslog's Factory/Stream) but for diagnostic print
// lines instead of audit records.
type Sink interface {
	Send(line string) error
	Close() error
}

// Factory constructs a Sink. Built-in factories are [StdoutFactory]
// and [NullFactory], mirroring accesslog's stdout/null pair.
type Factory interface {
	NewSink() (Sink, error)
}

// PrintCollector gathers print() builtin output for one or more
// evaluations, gated on a RegoVM's gather_prints flag (SPEC_FULL.md
// §4.10). Every captured line is both buffered for [Take] and forwarded
// to the configured Sink as it arrives.
type PrintCollector struct {
	mu    sync.Mutex
	sink  Sink
	lines []string
}

// NewPrintCollector returns a collector forwarding to sink. A nil sink
// only buffers lines for Take, forwarding nowhere.
func NewPrintCollector(sink Sink) *PrintCollector {
	return &PrintCollector{sink: sink}
}

// Add records line, forwarding it to the configured Sink.
func (c *PrintCollector) Add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	if c.sink != nil {
		_ = c.sink.Send(line)
	}
}

// Take returns every line collected since the last Take and resets the
// buffer, per SPEC_FULL.md §4.10's `take_prints` semantics.
func (c *PrintCollector) Take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.lines
	c.lines = nil
	return out
}

// DebugSnapshot captures a RegoVM's state at a suspension point: the
// program counter, the active frame's register window, and the depth
// of its loop/comprehension control stacks, per SPEC_FULL.md §4.10.
type DebugSnapshot struct {
	PC                 int32
	Registers          []value.Value
	LoopDepth          int
	ComprehensionDepth int
	ExecutionState     string
}
