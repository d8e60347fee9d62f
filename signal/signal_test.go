package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lvatt/flowgraph/signal"
)

func TestAppendInts(t *testing.T) {
	tests := []struct {
		real     signal.Real
		bitDepth signal.BitDepth
		expected []int
	}{
		{
			real:     signal.Real{0, 1, -1},
			bitDepth: signal.BitDepth16,
			expected: []int{0, math.MaxInt16, -math.MaxInt16},
		},
		{
			real:     signal.Real{2, -3},
			bitDepth: signal.BitDepth16,
			expected: []int{math.MaxInt16, -math.MaxInt16},
		},
		{
			real:     signal.Real{0.5},
			bitDepth: signal.BitDepth8,
			expected: []int{64},
		},
		{
			real:     nil,
			bitDepth: signal.BitDepth16,
			expected: nil,
		},
	}

	for _, test := range tests {
		result := test.real.AppendInts(nil, test.bitDepth)
		assert.Equal(t, test.expected, result)
	}
}

func TestRealFromInts(t *testing.T) {
	r := signal.RealFromInts([]int{0, math.MaxInt16, -math.MaxInt16}, signal.BitDepth16)
	assert.Equal(t, signal.Real{0, 1, -1}, r)
	assert.Nil(t, signal.RealFromInts(nil, signal.BitDepth16))
}

func TestComplexFromInts(t *testing.T) {
	c := signal.ComplexFromInts([]int{math.MaxInt16, 0, 0, -math.MaxInt16, 7}, signal.BitDepth16)
	assert.Equal(t, signal.Complex{complex(1, 0), complex(0, -1)}, c)
}

func TestBuffer(t *testing.T) {
	var b signal.Buffer = signal.Complex(make([]complex64, 3))
	assert.Equal(t, signal.KindComplex, b.Kind())
	assert.Equal(t, 3, b.Len())

	b = signal.Real(make([]float64, 5))
	assert.Equal(t, signal.KindReal, b.Kind())
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, "real", b.Kind().String())
	assert.Equal(t, "kind(7)", signal.Kind(7).String())
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(48000, 48000))
	assert.Equal(t, 500*time.Millisecond, signal.DurationOf(2000000, 1000000))
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 10))
}
