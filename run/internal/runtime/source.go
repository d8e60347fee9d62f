package runtime

import (
	"context"
	"io"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/metric"
)

// Source is the executor for source component.
type Source struct {
	flowgraph.SourceFunc
	StartFunc
	FlushFunc
	Sender
	// Stop is closed to end the stream gracefully. Blocks already sent
	// are still delivered downstream.
	Stop  <-chan struct{}
	Meter *metric.Meter
}

// SourceExecutor returns executor for source component.
func SourceExecutor(s flowgraph.Source, sender Link, stop <-chan struct{}, m *metric.Meter) Source {
	return Source{
		SourceFunc: s.SourceFunc,
		StartFunc:  StartFunc(s.StartFunc),
		FlushFunc:  FlushFunc(s.FlushFunc),
		Sender:     sender,
		Stop:       stop,
		Meter:      m,
	}
}

// Execute does a single iteration of source component. io.EOF is returned
// if context is done or stop is requested.
func (e Source) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		e.Sender.Close()
		return io.EOF
	case <-e.Stop:
		e.Sender.Close()
		return io.EOF
	default:
	}

	out, err := e.SourceFunc()
	if err != nil {
		e.Sender.Close()
		return err
	}
	if out == nil || out.Len() == 0 {
		return nil
	}

	if !e.Sender.Send(ctx, Message{Buffer: out}) {
		e.Sender.Close()
		return io.EOF
	}
	e.Meter.Measure(out.Len())
	return nil
}
