// Package filter provides the channel filter stage: a decimating low-pass
// FIR that band-limits the IQ stream and reduces its rate by Decimation.
//
// Taps depend on the input sample rate. They are regenerated inside the
// sample rate change handler, under the shared parameter lock, and every
// block is filtered with that lock held. A block is therefore filtered
// either entirely with the old taps or entirely with the new ones.
package filter

import (
	"fmt"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/dsp"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/mutable"
	"github.com/lvatt/flowgraph/params"
	"github.com/lvatt/flowgraph/signal"
)

// Fixed design of the channel filter.
const (
	Decimation      = 4
	Gain            = 1.0
	Cutoff          = 200000.0
	TransitionWidth = 1000000.0
	Window          = dsp.WindowBlackman
	// Beta is only used by the Kaiser window.
	Beta = 6.76
)

type (
	// Filter is the channel filter stage. It can be allocated once.
	Filter struct {
		rt         *params.Runtime
		log        log.Logger
		decimator  *dsp.Decimator
		sampleRate int
	}

	// Option configures the filter.
	Option func(*Filter)
)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(f *Filter) {
		f.log = l
	}
}

// Spec returns the low-pass specification for the input sample rate.
func Spec(sampleRate int) dsp.LowPassSpec {
	return dsp.LowPassSpec{
		Gain:            Gain,
		SampleRate:      float64(sampleRate),
		Cutoff:          Cutoff,
		TransitionWidth: TransitionWidth,
		Window:          Window,
		Beta:            Beta,
	}
}

// Design returns taps for the input sample rate.
func Design(sampleRate int) ([]float64, error) {
	return dsp.LowPass(Spec(sampleRate))
}

// Validate checks that the filter can run at the input sample rate.
func Validate(sampleRate int) error {
	if sampleRate%Decimation != 0 {
		return fmt.Errorf("%d Hz is not divisible by decimation %d", sampleRate, Decimation)
	}
	return Spec(sampleRate).Validate()
}

// New returns a channel filter bound to the runtime parameters.
func New(rt *params.Runtime, opts ...Option) *Filter {
	f := &Filter{
		rt:  rt,
		log: log.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Channel returns a channel filter allocator.
func Channel(rt *params.Runtime, opts ...Option) flowgraph.ProcessorAllocatorFunc {
	return New(rt, opts...).Processor()
}

// Processor returns the filter allocator. Input must be complex samples at
// the current runtime sample rate.
func (f *Filter) Processor() flowgraph.ProcessorAllocatorFunc {
	return func(mctx mutable.Context, bufferSize int, input flowgraph.SignalProperties) (flowgraph.Processor, error) {
		if err := input.CheckKind(signal.KindComplex); err != nil {
			return flowgraph.Processor{}, err
		}
		if err := input.CheckRate(f.rt.SampleRate()); err != nil {
			return flowgraph.Processor{}, err
		}
		if err := f.rt.Constrain(Validate); err != nil {
			return flowgraph.Processor{}, err
		}
		taps, err := Design(input.SampleRate)
		if err != nil {
			return flowgraph.Processor{}, err
		}
		f.rt.Locked(func() {
			f.decimator = dsp.NewDecimator(taps, Decimation)
			f.sampleRate = input.SampleRate
		})
		f.rt.Subscribe(mctx, f.onChange)
		f.log.Debug(fmt.Sprintf("filter: %d taps at %d Hz", len(taps), input.SampleRate))

		return flowgraph.Processor{
			Name:        "filter",
			ProcessFunc: f.process,
			Input:       signal.KindComplex,
			Output: flowgraph.SignalProperties{
				Kind:       signal.KindComplex,
				SampleRate: input.SampleRate / Decimation,
			},
		}, nil
	}
}

// Taps returns a copy of the installed taps.
func (f *Filter) Taps() []float64 {
	var taps []float64
	f.rt.Locked(func() {
		if f.decimator != nil {
			taps = append(taps, f.decimator.Taps()...)
		}
	})
	return taps
}

// OutputRate returns the current output sample rate.
func (f *Filter) OutputRate() int {
	var rate int
	f.rt.Locked(func() {
		rate = f.sampleRate / Decimation
	})
	return rate
}

func (f *Filter) process(in signal.Buffer) (signal.Buffer, error) {
	samples := in.(signal.Complex)
	var out signal.Complex
	f.rt.Locked(func() {
		out = f.decimator.Process(samples, make(signal.Complex, 0, f.decimator.OutputLen(len(samples))))
	})
	return out, nil
}

// onChange is called with the parameter lock held.
func (f *Filter) onChange(c params.Change) error {
	if c.Event != params.SampleRateChanged {
		return nil
	}
	taps, err := Design(c.SampleRate)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	f.decimator.SetTaps(taps)
	f.sampleRate = c.SampleRate
	f.log.Debug(fmt.Sprintf("filter: %d taps at %d Hz", len(taps), c.SampleRate))
	return nil
}
