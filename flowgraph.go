// Package flowgraph describes a linear DSP flow graph. A graph has a
// single source, zero or many processors and a single sink. Components
// are created by allocator functions and linked by typed edges that are
// validated once, when the graph is built.
//
// Execution is done by the run package.
package flowgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

var (
	// ErrNoSource is returned when a routing has no source.
	ErrNoSource = errors.New("no source")
	// ErrNoSink is returned when a routing has no sink.
	ErrNoSink = errors.New("no sink")
	// ErrNilProcessor is returned when a routing contains a nil processor.
	ErrNilProcessor = errors.New("nil processor")
	// ErrKindMismatch is returned when a component can't accept the
	// samples its input edge carries.
	ErrKindMismatch = errors.New("sample kind mismatch")
	// ErrRateMismatch is returned when a component can't accept the
	// sample rate of its input edge.
	ErrRateMismatch = errors.New("sample rate mismatch")
	// ErrBufferSize is returned when buffer size is not positive.
	ErrBufferSize = errors.New("invalid buffer size")
)

type (
	// SourceAllocatorFunc returns source for provided buffer size. It is
	// responsible for pre-allocation of all necessary buffers and
	// structures.
	SourceAllocatorFunc func(mctx mutable.Context, bufferSize int) (Source, error)

	// ProcessorAllocatorFunc returns processor for provided buffer size
	// and input properties. Along with the processor, output signal
	// properties are returned.
	ProcessorAllocatorFunc func(mctx mutable.Context, bufferSize int, input SignalProperties) (Processor, error)

	// SinkAllocatorFunc returns sink for provided buffer size and input
	// properties.
	SinkAllocatorFunc func(mctx mutable.Context, bufferSize int, input SignalProperties) (Sink, error)

	// SourceFunc returns the next block. It returns io.EOF when there is
	// no more data. The last block may be shorter than the buffer size.
	SourceFunc func() (signal.Buffer, error)

	// ProcessFunc transforms a block.
	ProcessFunc func(in signal.Buffer) (signal.Buffer, error)

	// SinkFunc consumes a block.
	SinkFunc func(in signal.Buffer) error

	// StartFunc is a hook executed before the first block.
	StartFunc func(ctx context.Context) error

	// FlushFunc is a hook executed after the last block. It is executed
	// for every started component, also when execution fails.
	FlushFunc func(ctx context.Context) error

	// SignalProperties contains information about signal on an edge.
	SignalProperties struct {
		Kind       signal.Kind
		SampleRate int
	}

	// Source is a component that produces blocks.
	Source struct {
		mutable.Context
		Name string
		SourceFunc
		StartFunc
		FlushFunc
		Output SignalProperties
	}

	// Processor is a component that transforms blocks.
	Processor struct {
		mutable.Context
		Name string
		ProcessFunc
		StartFunc
		FlushFunc
		// Input is the kind of samples the processor accepts.
		Input  signal.Kind
		Output SignalProperties
	}

	// Sink is a component that consumes blocks.
	Sink struct {
		mutable.Context
		Name string
		SinkFunc
		StartFunc
		FlushFunc
		// Input is the kind of samples the sink accepts.
		Input signal.Kind
	}
)

func (p SignalProperties) String() string {
	return fmt.Sprintf("%v@%dHz", p.Kind, p.SampleRate)
}

// CheckKind returns ErrKindMismatch if properties don't carry the kind.
func (p SignalProperties) CheckKind(k signal.Kind) error {
	if p.Kind != k {
		return fmt.Errorf("%w: got %v, want %v", ErrKindMismatch, p.Kind, k)
	}
	return nil
}

// CheckRate returns ErrRateMismatch if properties don't carry the rate.
func (p SignalProperties) CheckRate(sampleRate int) error {
	if p.SampleRate != sampleRate {
		return fmt.Errorf("%w: got %d, want %d", ErrRateMismatch, p.SampleRate, sampleRate)
	}
	return nil
}
