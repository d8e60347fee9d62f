// Package metric measures the blocks that pass through flow graph stages.
// Every run owns a Metric; it can be published with expvar under the
// flowgraph.runs label.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lvatt/flowgraph/signal"
)

const runsLabel = "flowgraph.runs"

const (
	// MessageCounter measures number of messages.
	MessageCounter = "Messages"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
)

type (
	// Metric holds meters of all stages of a run.
	Metric struct {
		mu     sync.Mutex
		order  []string
		meters map[string]*Meter
	}

	// Meter captures counters of a single stage. A nil Meter discards
	// measurements.
	Meter struct {
		sampleRate atomic.Int64
		calledAt   atomic.Int64
		messages   atomic.Int64
		samples    atomic.Int64
		latency    atomic.Int64
		duration   atomic.Int64
	}

	// Counters is a snapshot of a single meter.
	Counters struct {
		Messages int64
		Samples  int64
		Latency  time.Duration
		Duration time.Duration
	}

	// Measure is a snapshot of all meters of a run, by stage name.
	Measure map[string]Counters
)

// New returns an empty metric.
func New() *Metric {
	return &Metric{meters: make(map[string]*Meter)}
}

// Meter returns meter for the component. Sample rate is used to convert
// samples into signal duration; it is fixed for the life of the meter.
func (m *Metric) Meter(component string, sampleRate int) *Meter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meter, ok := m.meters[component]; ok {
		return meter
	}
	meter := &Meter{}
	meter.sampleRate.Store(int64(sampleRate))
	meter.calledAt.Store(time.Now().UnixNano())
	m.meters[component] = meter
	m.order = append(m.order, component)
	return meter
}

// Components returns names of the measured components in order of
// registration.
func (m *Metric) Components() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := make([]string, len(m.order))
	copy(c, m.order)
	return c
}

// Measure returns a snapshot of all meters.
func (m *Metric) Measure() Measure {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := make(Measure, len(m.meters))
	for name, meter := range m.meters {
		ms[name] = meter.Counters()
	}
	return ms
}

// Publish exposes the metric with expvar. Publishing the same id twice
// panics, as expvar does.
func Publish(id string, m *Metric) {
	expvar.Publish(fmt.Sprintf("%s.%s", runsLabel, id), expvar.Func(func() any {
		return m.Measure()
	}))
}

// Measure captures a block of samples.
func (m *Meter) Measure(samples int) {
	if m == nil {
		return
	}
	now := time.Now().UnixNano()
	m.latency.Store(now - m.calledAt.Swap(now))
	m.messages.Add(1)
	m.samples.Add(int64(samples))
	m.duration.Add(int64(signal.DurationOf(int(m.sampleRate.Load()), int64(samples))))
}

// Counters returns a snapshot of the meter.
func (m *Meter) Counters() Counters {
	if m == nil {
		return Counters{}
	}
	return Counters{
		Messages: m.messages.Load(),
		Samples:  m.samples.Load(),
		Latency:  time.Duration(m.latency.Load()),
		Duration: time.Duration(m.duration.Load()),
	}
}

func (c Counters) String() string {
	return fmt.Sprintf("%s: %d %s: %d %s: %v %s: %v",
		MessageCounter, c.Messages,
		SampleCounter, c.Samples,
		LatencyCounter, c.Latency,
		DurationCounter, c.Duration,
	)
}
