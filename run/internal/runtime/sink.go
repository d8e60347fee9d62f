package runtime

import (
	"context"
	"io"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/metric"
)

// Sink is the executor for sink component.
type Sink struct {
	flowgraph.SinkFunc
	StartFunc
	FlushFunc
	Receiver
	Meter *metric.Meter
}

// SinkExecutor returns executor for sink component.
func SinkExecutor(s flowgraph.Sink, receiver Link, m *metric.Meter) Sink {
	return Sink{
		SinkFunc:  s.SinkFunc,
		StartFunc: StartFunc(s.StartFunc),
		FlushFunc: FlushFunc(s.FlushFunc),
		Receiver:  receiver,
		Meter:     m,
	}
}

// Execute does a single iteration of sink component. io.EOF is returned if
// context is done or the input is closed.
func (e Sink) Execute(ctx context.Context) error {
	m, ok := e.Receiver.Receive(ctx)
	if !ok {
		return io.EOF
	}
	if err := e.SinkFunc(m.Buffer); err != nil {
		return err
	}
	e.Meter.Measure(m.Buffer.Len())
	return nil
}
