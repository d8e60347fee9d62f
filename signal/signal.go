// Package signal defines the sample buffers that travel between flow graph
// stages. It allows to:
//	- describe the kind of samples an edge carries
//	- convert real samples to fixed point PCM and back
package signal

import (
	"fmt"
	"math"
	"time"
)

const (
	// KindComplex is a stream of complex baseband (IQ) samples.
	KindComplex Kind = iota + 1
	// KindReal is a stream of real samples, e.g. audio.
	KindReal
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

type (
	// Kind is the sample type carried by an edge.
	Kind int

	// Buffer is a block of samples of a single kind.
	Buffer interface {
		Kind() Kind
		Len() int
	}

	// Complex is a block of complex samples.
	Complex []complex64

	// Real is a block of real samples.
	Real []float64

	// BitDepth contains values required for float-to-int and backward
	// conversion.
	BitDepth int
)

func (k Kind) String() string {
	switch k {
	case KindComplex:
		return "complex"
	case KindReal:
		return "real"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kind implements Buffer.
func (Complex) Kind() Kind { return KindComplex }

// Len implements Buffer.
func (c Complex) Len() int { return len(c) }

// Kind implements Buffer.
func (Real) Kind() Kind { return KindReal }

// Len implements Buffer.
func (r Real) Len() int { return len(r) }

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() float64 {
	return bitDepth.devider()
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// AppendInts quantizes the samples to the bit depth and appends them to
// dst. Values outside [-1, 1] are clipped.
func (r Real) AppendInts(dst []int, bitDepth BitDepth) []int {
	m := bitDepth.multiplier()
	for _, v := range r {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		dst = append(dst, int(math.Round(v*m)))
	}
	return dst
}

// RealFromInts converts fixed point samples of the bit depth to floats.
func RealFromInts(ints []int, bitDepth BitDepth) Real {
	if ints == nil {
		return nil
	}
	d := bitDepth.devider()
	r := make(Real, len(ints))
	for i, v := range ints {
		r[i] = float64(v) / d
	}
	return r
}

// ComplexFromInts converts interleaved I/Q fixed point pairs to complex
// samples. A trailing unpaired value is ignored.
func ComplexFromInts(ints []int, bitDepth BitDepth) Complex {
	if ints == nil {
		return nil
	}
	d := float32(bitDepth.devider())
	c := make(Complex, len(ints)/2)
	for i := range c {
		c[i] = complex(float32(ints[2*i])/d, float32(ints[2*i+1])/d)
	}
	return c
}
