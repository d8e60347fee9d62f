// Package mock provides mocks for flow graph components and allows to
// execute integration tests.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

const defaultSampleRate = 2000000

type (
	// Counter counts messages and samples. It is safe to read while the
	// component is running.
	Counter struct {
		mu       sync.Mutex
		messages int
		samples  int
	}

	// Hooks allows to mock components hooks.
	Hooks struct {
		Started      bool
		Flushed      bool
		ErrorOnStart error
		ErrorOnFlush error
	}

	// Source produces Limit complex samples with constant Value.
	Source struct {
		Counter
		Hooks
		Interval    time.Duration
		Limit       int
		Value       complex64
		SampleRate  int
		ErrorOnCall error
	}

	// Processor passes blocks through. Output kind equals input kind.
	Processor struct {
		Counter
		Hooks
		ErrorOnCall error
	}

	// Sink consumes blocks of any kind.
	// Buffer is not thread-safe, so should not be checked while the
	// graph is running.
	Sink struct {
		Counter
		Hooks
		Discard     bool
		ErrorOnCall error
		Kind        signal.Kind
		buffer      []signal.Buffer
	}
)

// Source returns new source allocator.
func (m *Source) Source() flowgraph.SourceAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int) (flowgraph.Source, error) {
		sampleRate := m.SampleRate
		if sampleRate == 0 {
			sampleRate = defaultSampleRate
		}
		return flowgraph.Source{
			Name: "mock source",
			SourceFunc: func() (signal.Buffer, error) {
				if m.ErrorOnCall != nil {
					return nil, m.ErrorOnCall
				}
				_, samples := m.Count()
				if samples >= m.Limit {
					return nil, io.EOF
				}
				time.Sleep(m.Interval)

				bs := bufferSize
				if left := m.Limit - samples; left < bs {
					bs = left
				}
				out := make(signal.Complex, bs)
				for i := range out {
					out[i] = m.Value
				}
				m.advance(bs)
				return out, nil
			},
			StartFunc: m.Hooks.start,
			FlushFunc: m.Hooks.flush,
			Output: flowgraph.SignalProperties{
				Kind:       signal.KindComplex,
				SampleRate: sampleRate,
			},
		}, nil
	}
}

// Reset rewinds the source so it can be allocated again.
func (m *Source) Reset() {
	m.Counter.reset()
	m.Hooks = Hooks{ErrorOnStart: m.ErrorOnStart, ErrorOnFlush: m.ErrorOnFlush}
}

// Processor returns new processor allocator.
func (m *Processor) Processor() flowgraph.ProcessorAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int, input flowgraph.SignalProperties) (flowgraph.Processor, error) {
		return flowgraph.Processor{
			Name: "mock processor",
			ProcessFunc: func(in signal.Buffer) (signal.Buffer, error) {
				if m.ErrorOnCall != nil {
					return nil, m.ErrorOnCall
				}
				m.advance(in.Len())
				return in, nil
			},
			StartFunc: m.Hooks.start,
			FlushFunc: m.Hooks.flush,
			Input:     input.Kind,
			Output:    input,
		}, nil
	}
}

// Sink returns new sink allocator. If Kind is not set, the sink accepts
// any kind.
func (m *Sink) Sink() flowgraph.SinkAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int, input flowgraph.SignalProperties) (flowgraph.Sink, error) {
		kind := m.Kind
		if kind == 0 {
			kind = input.Kind
		}
		return flowgraph.Sink{
			Name: "mock sink",
			SinkFunc: func(in signal.Buffer) error {
				if m.ErrorOnCall != nil {
					return m.ErrorOnCall
				}
				if !m.Discard {
					m.buffer = append(m.buffer, in)
				}
				m.advance(in.Len())
				return nil
			},
			StartFunc: m.Hooks.start,
			FlushFunc: m.Hooks.flush,
			Input:     kind,
		}, nil
	}
}

// Buffers returns blocks received by sink.
func (m *Sink) Buffers() []signal.Buffer {
	return m.buffer
}

func (h *Hooks) start(ctx context.Context) error {
	h.Started = true
	return h.ErrorOnStart
}

func (h *Hooks) flush(ctx context.Context) error {
	h.Flushed = true
	return h.ErrorOnFlush
}

// Count returns messages and samples metrics.
func (c *Counter) Count() (messages, samples int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages, c.samples
}

func (c *Counter) advance(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	c.samples += size
}

func (c *Counter) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages, c.samples = 0, 0
}
