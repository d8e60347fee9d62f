package dsp

import (
	"math"
	"math/cmplx"
)

// Discriminator is a quadrature FM demodulator. The output is the phase
// difference of consecutive samples multiplied by the gain.
type Discriminator struct {
	Gain float64
	prev complex128
}

// DiscriminatorGain returns the gain that maps the maximum deviation to
// an output of one at the sample rate.
func DiscriminatorGain(sampleRate, maxDeviation float64) float64 {
	return sampleRate / (2 * math.Pi * maxDeviation)
}

// NewDiscriminator returns a demodulator with the given gain.
func NewDiscriminator(gain float64) *Discriminator {
	return &Discriminator{Gain: gain, prev: 1}
}

// Process demodulates the input and appends the result to out. The last
// sample of each block is carried to the next one.
func (d *Discriminator) Process(in []complex64, out []float64) []float64 {
	for _, s := range in {
		cur := complex128(s)
		out = append(out, d.Gain*cmplx.Phase(cur*cmplx.Conj(d.prev)))
		d.prev = cur
	}
	return out
}

// Clip limits every sample to [-limit, limit] in place.
func Clip(x []float64, limit float64) {
	for i, v := range x {
		switch {
		case v > limit:
			x[i] = limit
		case v < -limit:
			x[i] = -limit
		}
	}
}

// Deemphasis is a first order low-pass with time constant tau.
type Deemphasis struct {
	alpha float64
	prev  float64
}

// NewDeemphasis returns a de-emphasis filter for the sample rate.
func NewDeemphasis(sampleRate, tau float64) *Deemphasis {
	d := &Deemphasis{}
	d.SetSampleRate(sampleRate, tau)
	return d
}

// SetSampleRate recomputes the coefficient. The filter state is kept.
func (d *Deemphasis) SetSampleRate(sampleRate, tau float64) {
	dt := 1 / sampleRate
	d.alpha = dt / (tau + dt)
}

// Alpha returns the smoothing coefficient.
func (d *Deemphasis) Alpha() float64 {
	return d.alpha
}

// Process filters the samples in place.
func (d *Deemphasis) Process(x []float64) {
	for i, v := range x {
		d.prev += d.alpha * (v - d.prev)
		x[i] = d.prev
	}
}
