package dsp

import (
	"errors"
	"fmt"
	"math"
)

const (
	// minTaps keeps very low rates from producing a degenerate filter.
	minTaps = 3
	// MaxTaps bounds the length of a designed filter.
	MaxTaps = 4095
)

// ErrInvalidFilter is returned when a low-pass specification cannot be
// designed.
var ErrInvalidFilter = errors.New("invalid filter specification")

// LowPassSpec describes a windowed-sinc low-pass filter.
type LowPassSpec struct {
	Gain            float64
	SampleRate      float64
	Cutoff          float64
	TransitionWidth float64
	Window
	Beta float64
}

// Validate checks that the specification describes a realizable filter.
func (s LowPassSpec) Validate() error {
	switch {
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %v", ErrInvalidFilter, s.SampleRate)
	case s.Cutoff <= 0 || s.Cutoff >= s.SampleRate/2:
		return fmt.Errorf("%w: cutoff %v outside (0, %v)", ErrInvalidFilter, s.Cutoff, s.SampleRate/2)
	case s.TransitionWidth <= 0:
		return fmt.Errorf("%w: transition width %v", ErrInvalidFilter, s.TransitionWidth)
	case s.taps() > MaxTaps:
		return fmt.Errorf("%w: %.0f taps needed, at most %d", ErrInvalidFilter, s.taps(), MaxTaps)
	}
	return nil
}

// NumTaps returns the tap count needed to reach the window attenuation
// over the transition band. The count is always odd.
func (s LowPassSpec) NumTaps() int {
	n := int(s.taps())
	if n < minTaps {
		n = minTaps
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// LowPass designs the taps of a linear phase low-pass filter. The taps
// are scaled so the DC gain equals the requested gain.
func LowPass(s LowPassSpec) ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := s.NumTaps()
	w := s.Window.Coefficients(n, s.Beta)
	m := (n - 1) / 2
	fwT0 := 2 * math.Pi * s.Cutoff / s.SampleRate

	taps := make([]float64, n)
	for k := -m; k <= m; k++ {
		if k == 0 {
			taps[k+m] = fwT0 / math.Pi * w[k+m]
			continue
		}
		taps[k+m] = math.Sin(float64(k)*fwT0) / (float64(k) * math.Pi) * w[k+m]
	}

	// normalize using the response at DC
	fmax := taps[m]
	for k := 1; k <= m; k++ {
		fmax += 2 * taps[k+m]
	}
	g := s.Gain / fmax
	for i := range taps {
		taps[i] *= g
	}
	return taps, nil
}

func (s LowPassSpec) taps() float64 {
	return s.Window.Attenuation(s.Beta) * s.SampleRate / (22 * s.TransitionWidth)
}
