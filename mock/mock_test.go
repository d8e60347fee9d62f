package mock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/mock"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/signal"
)

var errTest = errors.New("test error")

func TestSource(t *testing.T) {
	type params struct {
		bufferSize int
		calls      int
	}
	testSource := func(m *mock.Source, p params) func(*testing.T) {
		return func(t *testing.T) {
			s, err := m.Source()(mutable.Mutable(), p.bufferSize)
			require.NoError(t, err)
			assert.Equal(t, signal.KindComplex, s.Output.Kind)
			require.NoError(t, s.StartFunc(context.Background()))
			for {
				b, err := s.SourceFunc()
				if err != nil {
					if err != io.EOF {
						assert.Equal(t, m.ErrorOnCall, err)
					}
					break
				}
				for _, v := range b.(signal.Complex) {
					assert.Equal(t, m.Value, v)
				}
			}
			require.NoError(t, s.FlushFunc(context.Background()))
			messages, samples := m.Count()
			assert.Equal(t, p.calls, messages)
			if m.ErrorOnCall == nil {
				assert.Equal(t, m.Limit, samples)
			}
			assert.True(t, m.Started)
			assert.True(t, m.Flushed)
		}
	}

	t.Run("3 calls", testSource(
		&mock.Source{Limit: 11, Value: 1},
		params{bufferSize: 5, calls: 3},
	))
	t.Run("500 calls", testSource(
		&mock.Source{Limit: 2500, Value: complex(0, 1)},
		params{bufferSize: 5, calls: 500},
	))
	t.Run("error on call", testSource(
		&mock.Source{Limit: 10, ErrorOnCall: errTest},
		params{bufferSize: 5},
	))
}

func TestSourceReset(t *testing.T) {
	m := &mock.Source{Limit: 4, Hooks: mock.Hooks{ErrorOnFlush: errTest}}
	s, err := m.Source()(mutable.Mutable(), 4)
	require.NoError(t, err)
	_, err = s.SourceFunc()
	require.NoError(t, err)
	assert.ErrorIs(t, s.FlushFunc(context.Background()), errTest)

	m.Reset()
	messages, samples := m.Count()
	assert.Zero(t, messages)
	assert.Zero(t, samples)
	assert.False(t, m.Flushed)
	assert.Equal(t, errTest, m.ErrorOnFlush)
}

func TestProcessorAndSink(t *testing.T) {
	input := flowgraph.SignalProperties{Kind: signal.KindReal, SampleRate: 48000}
	proc := &mock.Processor{}
	p, err := proc.Processor()(mutable.Mutable(), 4, input)
	require.NoError(t, err)
	assert.Equal(t, input, p.Output)
	assert.Equal(t, signal.KindReal, p.Input)

	sink := &mock.Sink{}
	s, err := sink.Sink()(mutable.Mutable(), 4, p.Output)
	require.NoError(t, err)
	assert.Equal(t, signal.KindReal, s.Input)

	for _, b := range []signal.Real{{1, 2, 3}, {4}} {
		out, err := p.ProcessFunc(b)
		require.NoError(t, err)
		require.NoError(t, s.SinkFunc(out))
	}
	messages, samples := sink.Count()
	assert.Equal(t, 2, messages)
	assert.Equal(t, 4, samples)
	assert.Equal(t, []signal.Buffer{signal.Real{1, 2, 3}, signal.Real{4}}, sink.Buffers())

	proc.ErrorOnCall = errTest
	_, err = p.ProcessFunc(signal.Real{1})
	assert.Equal(t, errTest, err)

	sink.ErrorOnCall = errTest
	assert.Equal(t, errTest, s.SinkFunc(signal.Real{1}))
}
