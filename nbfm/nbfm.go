// Package nbfm provides the narrowband FM demodulator stage.
//
// Each block goes through a quadrature discriminator scaled so that the
// maximum deviation maps to one, a clipper, a de-emphasis filter and a
// rational resampler down to AudioRate. The demodulator runs at a quad rate
// that always equals the runtime sample rate divided by the channel filter
// decimation.
package nbfm

import (
	"fmt"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/dsp"
	"github.com/lvatt/flowgraph/filter"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/params"
	"github.com/lvatt/flowgraph/signal"
)

const (
	// AudioRate is the output sample rate.
	AudioRate = 48000
	// QuadRate is the nominal demodulator input rate. The effective rate
	// follows the runtime sample rate.
	QuadRate = 480000
	// Tau is the de-emphasis time constant in seconds.
	Tau = 75e-6
	// MaxDeviation is the maximum frequency deviation in Hz.
	MaxDeviation = 5000.0
	// MaxInterpolation limits the reduced interpolation factor of the
	// resampler. Quad rates with no small ratio to AudioRate are rejected.
	MaxInterpolation = 1000

	clipLevel = 1.0
)

type (
	// Demodulator is the NBFM stage. It can be allocated once.
	Demodulator struct {
		rt  *params.Runtime
		log log.Logger

		// guarded by the runtime lock
		quadRate int
		pending  *state

		// owned by the processing goroutine
		disc      *dsp.Discriminator
		deemph    *dsp.Deemphasis
		resampler *dsp.Resampler
		scratch   []float64
	}

	// Option configures the demodulator.
	Option func(*Demodulator)

	// state derived from the quad rate.
	state struct {
		quadRate  int
		gain      float64
		resampler *dsp.Resampler
	}
)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(d *Demodulator) {
		d.log = l
	}
}

// QuadRateOf returns the demodulator input rate for the sample rate.
func QuadRateOf(sampleRate int) int {
	return sampleRate / filter.Decimation
}

// Validate checks that the demodulator can run after the channel filter
// at the input sample rate.
func Validate(sampleRate int) error {
	if sampleRate%filter.Decimation != 0 {
		return fmt.Errorf("%d Hz is not divisible by decimation %d", sampleRate, filter.Decimation)
	}
	quadRate := QuadRateOf(sampleRate)
	if up, down := dsp.Ratio(quadRate, AudioRate); up > MaxInterpolation {
		return fmt.Errorf("quad rate %d Hz resamples to %d Hz as %d/%d", quadRate, AudioRate, up, down)
	}
	return nil
}

// New returns a demodulator bound to the runtime parameters.
func New(rt *params.Runtime, opts ...Option) *Demodulator {
	d := &Demodulator{
		rt:  rt,
		log: log.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Demod returns a demodulator allocator.
func Demod(rt *params.Runtime, opts ...Option) flowgraph.ProcessorAllocatorFunc {
	return New(rt, opts...).Processor()
}

// Processor returns the demodulator allocator. Input must be complex
// samples at the channel filter output rate.
func (d *Demodulator) Processor() flowgraph.ProcessorAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int, input flowgraph.SignalProperties) (flowgraph.Processor, error) {
		if err := input.CheckKind(signal.KindComplex); err != nil {
			return flowgraph.Processor{}, err
		}
		if err := input.CheckRate(QuadRateOf(d.rt.SampleRate())); err != nil {
			return flowgraph.Processor{}, err
		}
		if err := d.rt.Constrain(Validate); err != nil {
			return flowgraph.Processor{}, err
		}
		s, err := newState(input.SampleRate)
		if err != nil {
			return flowgraph.Processor{}, err
		}
		if input.SampleRate != QuadRate {
			d.log.Warn(fmt.Sprintf("nbfm: quad rate %d Hz differs from nominal %d Hz", input.SampleRate, QuadRate))
		}
		d.disc = dsp.NewDiscriminator(s.gain)
		d.deemph = dsp.NewDeemphasis(float64(s.quadRate), Tau)
		d.resampler = s.resampler
		d.scratch = make([]float64, 0, bufferSize)
		d.rt.Locked(func() {
			d.quadRate = s.quadRate
		})
		d.rt.Subscribe(mctx, d.onChange)
		d.log.Debug(fmt.Sprintf("nbfm: %d Hz resampled by %d/%d", s.quadRate, s.resampler.Up(), s.resampler.Down()))

		return flowgraph.Processor{
			Name:        "nbfm",
			ProcessFunc: d.process,
			Input:       signal.KindComplex,
			Output: flowgraph.SignalProperties{
				Kind:       signal.KindReal,
				SampleRate: AudioRate,
			},
		}, nil
	}
}

// QuadRate returns the current effective input rate.
func (d *Demodulator) QuadRate() int {
	var rate int
	d.rt.Locked(func() {
		rate = d.quadRate
	})
	return rate
}

func (d *Demodulator) process(in signal.Buffer) (signal.Buffer, error) {
	d.rt.Locked(d.apply)
	samples := in.(signal.Complex)
	d.scratch = d.disc.Process(samples, d.scratch[:0])
	dsp.Clip(d.scratch, clipLevel)
	d.deemph.Process(d.scratch)
	out := make(signal.Real, 0, len(d.scratch)*d.resampler.Up()/d.resampler.Down()+1)
	return signal.Real(d.resampler.Process(d.scratch, out)), nil
}

// apply installs state built by the last change. Must be called with the
// runtime lock held.
func (d *Demodulator) apply() {
	if d.pending == nil {
		return
	}
	s := d.pending
	d.pending = nil
	d.disc.Gain = s.gain
	d.deemph.SetSampleRate(float64(s.quadRate), Tau)
	d.resampler = s.resampler
}

// onChange is called with the runtime lock held.
func (d *Demodulator) onChange(c params.Change) error {
	if c.Event != params.SampleRateChanged {
		return nil
	}
	quadRate := QuadRateOf(c.SampleRate)
	if quadRate == d.quadRate {
		return nil
	}
	s, err := newState(quadRate)
	if err != nil {
		return fmt.Errorf("nbfm: %w", err)
	}
	d.pending = s
	d.quadRate = quadRate
	d.log.Debug(fmt.Sprintf("nbfm: quad rate %d Hz", quadRate))
	return nil
}

func newState(quadRate int) (*state, error) {
	r, err := dsp.NewResampler(dsp.Ratio(quadRate, AudioRate))
	if err != nil {
		return nil, err
	}
	return &state{
		quadRate:  quadRate,
		gain:      dsp.DiscriminatorGain(float64(quadRate), MaxDeviation),
		resampler: r,
	}, nil
}
