//
//  Copyright © Manetu Inc. All rights reserved.
//

package diagnostics

import (
	"fmt"
	"io"
	"os"
)

// StdoutFactory creates Sinks that write each print() line to an
// io.Writer (stdout by default), mirroring accesslog's IoWriterFactory.
type StdoutFactory struct {
	w io.Writer
}

// NewStdoutFactory returns a Factory writing to os.Stdout.
func NewStdoutFactory() *StdoutFactory { return &StdoutFactory{w: os.Stdout} }

// NewWriterFactory returns a Factory writing to an arbitrary writer,
// useful for tests that want to capture output without touching stdout.
func NewWriterFactory(w io.Writer) *StdoutFactory { return &StdoutFactory{w: w} }

// NewSink implements Factory.
func (f *StdoutFactory) NewSink() (Sink, error) {
	return &stdoutSink{w: f.w}, nil
}

type stdoutSink struct {
	w io.Writer
}

func (s *stdoutSink) Send(line string) error {
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *stdoutSink) Close() error { return nil }
