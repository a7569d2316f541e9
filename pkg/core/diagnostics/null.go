//
//  Copyright © Manetu Inc. All rights reserved.
//

package diagnostics

// NullFactory creates Sinks that discard every line, mirroring
// accesslog's NullFactory. Useful when gather_prints is enabled only
// to populate Take() and nothing should echo to a host stream.
type NullFactory struct{}

// NewNullFactory returns a Factory whose Sinks discard all output.
func NewNullFactory() *NullFactory { return &NullFactory{} }

// NewSink implements Factory.
func (f *NullFactory) NewSink() (Sink, error) { return nullSink{}, nil }

type nullSink struct{}

func (nullSink) Send(string) error { return nil }
func (nullSink) Close() error      { return nil }
