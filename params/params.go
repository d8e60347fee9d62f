// Package params holds the runtime parameters shared by the flow graph
// stages.
//
// All reads and writes go through a single mutex. Stages that derive state
// from a parameter subscribe with their mutable context; a change is
// validated against every registered constraint, stored, and then
// dispatched synchronously, under the same lock, to every subscriber. When
// a setter returns, all dependent state has been rebuilt.
package params

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lvatt/flowgraph/mutable"
)

const (
	// SampleRateChanged is dispatched when the input sample rate changes.
	SampleRateChanged Event = iota + 1
	// FreqChanged is dispatched when the center frequency changes.
	FreqChanged
)

var (
	// ErrInvalidSampleRate is returned when a sample rate is rejected.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	// ErrInvalidFreq is returned when a frequency is rejected.
	ErrInvalidFreq = errors.New("invalid frequency")
	// ErrClosed is returned by setters after the runtime is closed.
	ErrClosed = errors.New("parameters are closed")
	// ErrRestore is returned when subscribers could not be rebuilt for the
	// previous value after a rejected change. Their state is undefined.
	ErrRestore = errors.New("previous parameters not restored")
)

type (
	// Event tags a parameter change.
	Event int

	// Change describes a parameter change. Both values reflect the state
	// after the change.
	Change struct {
		Event
		SampleRate int
		Freq       float64
	}

	// Handler rebuilds subscriber state for a change. It is called with
	// the runtime lock held and must not call back into the runtime.
	Handler func(Change) error

	// Constraint validates a candidate sample rate.
	Constraint func(sampleRate int) error

	// Runtime is the shared parameter record.
	Runtime struct {
		mu          sync.Mutex
		sampleRate  int
		freq        float64
		closed      bool
		subscribers []subscriber
		constraints []Constraint
	}

	subscriber struct {
		mutable.Context
		Handler
	}
)

func (e Event) String() string {
	switch e {
	case SampleRateChanged:
		return "sample rate changed"
	case FreqChanged:
		return "freq changed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// New returns runtime parameters with initial values.
func New(sampleRate int, freq float64) (*Runtime, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if err := validateFreq(freq); err != nil {
		return nil, err
	}
	return &Runtime{
		sampleRate: sampleRate,
		freq:       freq,
	}, nil
}

// Subscribe registers a handler for the stage context. Handlers are
// dispatched in the order of subscription. It panics if the context is
// immutable.
func (r *Runtime) Subscribe(ctx mutable.Context, h Handler) {
	if !ctx.IsMutable() {
		panic("params: subscribe with immutable context")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, subscriber{Context: ctx, Handler: h})
}

// Constrain registers a sample rate constraint. The current sample rate
// is checked immediately and the constraint is not registered if it
// fails.
func (r *Runtime) Constrain(c Constraint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := c(r.sampleRate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, err)
	}
	r.constraints = append(r.constraints, c)
	return nil
}

// SampleRate returns the current input sample rate.
func (r *Runtime) SampleRate() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampleRate
}

// Freq returns the current center frequency.
func (r *Runtime) Freq() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freq
}

// SetSampleRate validates and stores the sample rate and rebuilds the
// state of every subscriber before returning. If a subscriber fails, the
// previous value is restored and re-dispatched.
func (r *Runtime) SetSampleRate(v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if v <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, v)
	}
	for _, c := range r.constraints {
		if err := c(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSampleRate, err)
		}
	}
	prev := r.sampleRate
	r.sampleRate = v
	if err := r.dispatch(SampleRateChanged); err != nil {
		r.sampleRate = prev
		if rerr := r.dispatch(SampleRateChanged); rerr != nil {
			return fmt.Errorf("%w: %w: %v", err, ErrRestore, rerr)
		}
		return err
	}
	return nil
}

// SetFreq stores the center frequency and notifies subscribers.
func (r *Runtime) SetFreq(v float64) error {
	if err := validateFreq(v); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.freq = v
	return r.dispatch(FreqChanged)
}

// Locked calls fn with the lock held. Stages use it to read derived state
// consistently with the parameters.
func (r *Runtime) Locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Close rejects further changes. It is safe to call multiple times.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// dispatch must be called with the lock held.
func (r *Runtime) dispatch(e Event) error {
	var ms mutable.Mutations
	c := Change{Event: e, SampleRate: r.sampleRate, Freq: r.freq}
	for i := range r.subscribers {
		h := r.subscribers[i].Handler
		ms = ms.Put(r.subscribers[i].Mutate(func() error {
			return h(c)
		}))
	}
	// subscribers consume their own mutations in order, the rest are
	// dropped on the first error
	for i := range r.subscribers {
		id := r.subscribers[i].Context
		if err := ms.Detach(id).ApplyTo(id); err != nil {
			return fmt.Errorf("%v: %w", e, err)
		}
	}
	return nil
}

func validateFreq(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFreq, v)
	}
	return nil
}
