package runtime

import (
	"context"
	"io"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/metric"
)

// Processor is the executor for processor component.
type Processor struct {
	flowgraph.ProcessFunc
	StartFunc
	FlushFunc
	Receiver
	Sender
	Meter *metric.Meter
}

// ProcessExecutor returns executor for processor component.
func ProcessExecutor(p flowgraph.Processor, receiver, sender Link, m *metric.Meter) Processor {
	return Processor{
		ProcessFunc: p.ProcessFunc,
		StartFunc:   StartFunc(p.StartFunc),
		FlushFunc:   FlushFunc(p.FlushFunc),
		Receiver:    receiver,
		Sender:      sender,
		Meter:       m,
	}
}

// Execute does a single iteration of processor component. io.EOF is
// returned if context is done or the input is closed.
func (e Processor) Execute(ctx context.Context) error {
	m, ok := e.Receiver.Receive(ctx)
	if !ok {
		e.Sender.Close()
		return io.EOF
	}

	out, err := e.ProcessFunc(m.Buffer)
	if err != nil {
		e.Sender.Close()
		return err
	}
	// decimation may leave nothing to send for a short block
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
