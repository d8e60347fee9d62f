// Package dsp contains the signal processing primitives used by the flow
// graph stages: windowed-sinc low-pass design, a decimating FIR with a
// persistent delay line, an FM discriminator, de-emphasis and a rational
// polyphase resampler.
//
// Block types are stateful and not safe for concurrent use. Design
// functions are pure.
package dsp

import (
	"fmt"
	"math"
)

// Supported windows.
const (
	WindowRectangular Window = iota
	WindowHamming
	WindowHann
	WindowBlackman
	WindowKaiser
)

// Window selects the window applied to a windowed-sinc design.
type Window int

func (w Window) String() string {
	switch w {
	case WindowRectangular:
		return "rectangular"
	case WindowHamming:
		return "hamming"
	case WindowHann:
		return "hann"
	case WindowBlackman:
		return "blackman"
	case WindowKaiser:
		return "kaiser"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// Attenuation returns the stopband attenuation in dB the window achieves.
// Beta is only used by the Kaiser window.
func (w Window) Attenuation(beta float64) float64 {
	switch w {
	case WindowRectangular:
		return 21
	case WindowHamming:
		return 53
	case WindowHann:
		return 44
	case WindowBlackman:
		return 74
	case WindowKaiser:
		return beta/0.1102 + 8.7
	default:
		return 0
	}
}

// Coefficients returns n window coefficients.
func (w Window) Coefficients(n int, beta float64) []float64 {
	if n <= 0 {
		return nil
	}
	c := make([]float64, n)
	if n == 1 {
		c[0] = 1
		return c
	}
	m := float64(n - 1)
	for i := range c {
		x := float64(i)
		switch w {
		case WindowHamming:
			c[i] = 0.54 - 0.46*math.Cos(2*math.Pi*x/m)
		case WindowHann:
			c[i] = 0.5 - 0.5*math.Cos(2*math.Pi*x/m)
		case WindowBlackman:
			c[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x/m) + 0.08*math.Cos(4*math.Pi*x/m)
		case WindowKaiser:
			r := 2*x/m - 1
			c[i] = besselI0(beta*math.Sqrt(1-r*r)) / besselI0(beta)
		default:
			c[i] = 1
		}
	}
	return c
}

// besselI0 is the zeroth order modified Bessel function of the first kind.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	y := x * x / 4
	for k := 1; k < 64; k++ {
		term *= y / float64(k*k)
		sum += term
		if term < sum*1e-12 {
			break
		}
	}
	return sum
}
