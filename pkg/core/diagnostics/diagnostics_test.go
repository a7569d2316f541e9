//
//  Copyright © Manetu Inc. All rights reserved.
//

package diagnostics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutFactory(t *testing.T) {
	f := NewStdoutFactory()
	assert.NotNil(t, f)
	assert.IsType(t, &StdoutFactory{}, f)
}

func TestWriterFactorySend(t *testing.T) {
	buf := &bytes.Buffer{}
	f := NewWriterFactory(buf)
	sink, err := f.NewSink()
	require.NoError(t, err)
	require.NoError(t, sink.Send("hello from print()"))
	assert.Equal(t, "hello from print()\n", buf.String())
	assert.NoError(t, sink.Close())
}

func TestNullFactoryDiscards(t *testing.T) {
	f := NewNullFactory()
	sink, err := f.NewSink()
	require.NoError(t, err)
	assert.NoError(t, sink.Send("discarded"))
	assert.NoError(t, sink.Close())
}

func TestPrintCollectorTakeResetsBuffer(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewPrintCollector(NewWriterFactoryMustSink(t, buf))
	c.Add("one")
	c.Add("two")
	assert.Equal(t, []string{"one", "two"}, c.Take())
	assert.Nil(t, c.Take())
	assert.Equal(t, "one\ntwo\n", buf.String())
}

// NewWriterFactoryMustSink is a small test helper collapsing
// Factory.NewSink's error return, since the writer-backed sink never
// fails to construct.
func NewWriterFactoryMustSink(t *testing.T, buf *bytes.Buffer) Sink {
	t.Helper()
	sink, err := NewWriterFactory(buf).NewSink()
	require.NoError(t, err)
	return sink
}

func TestCoverageReportPercentAndUncovered(t *testing.T) {
	executed := map[int32]bool{0: true, 1: true, 3: true}
	r := NewCoverageReport(4, executed)
	assert.InDelta(t, 75.0, r.Percent(), 0.0001)
	assert.Equal(t, []PC{2}, r.Uncovered())
}

func TestCoverageReportEmptyProgram(t *testing.T) {
	r := NewCoverageReport(0, nil)
	assert.Equal(t, float64(0), r.Percent())
	assert.Empty(t, r.Uncovered())
}
