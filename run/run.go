// Package run executes a flow graph. Every stage is executed in its own
// goroutine and stages are linked with channels, so blocks flow in order
// from the source to the sink.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lvatt/flowgraph"
	"github.com/lvatt/flowgraph/log"
	"github.com/lvatt/flowgraph/metric"
	"github.com/lvatt/flowgraph/params"
	"github.com/lvatt/flowgraph/run/internal/runtime"
)

const (
	// Constructed run has its stages bound, but not started.
	Constructed State = iota
	// Running run executes its stages.
	Running
	// Stopped run is done. It can't be started again.
	Stopped
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state of the run.
	ErrInvalidState = errors.New("invalid run state")
	// ErrNoGraph is returned when a run is created without a graph.
	ErrNoGraph = errors.New("no graph")
	// ErrNoParams is returned when a run is created without parameters.
	ErrNoParams = errors.New("no runtime parameters")
)

type (
	// State of the run.
	State int

	// Run controls a single execution of the graph.
	Run struct {
		id      xid.ID
		rt      *params.Runtime
		log     logrus.FieldLogger
		metric  *metric.Metric
		publish bool
		stages  []stage

		mu    sync.Mutex
		state State
		err   error

		stop     chan struct{}
		stopOnce sync.Once
		done     chan struct{}
	}

	// Option configures the run.
	Option func(*Run)

	stage struct {
		name string
		runtime.Executor
	}
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WithLogger sets the logger. Entries are tagged with the run id.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Run) {
		r.log = l
	}
}

// WithPublish publishes the run metric with expvar.
func WithPublish() Option {
	return func(r *Run) {
		r.publish = true
	}
}

// New binds the graph stages with links and returns a run in Constructed
// state. The graph components are single-use: a graph can be bound to a
// single run.
func New(g *flowgraph.Graph, rt *params.Runtime, opts ...Option) (*Run, error) {
	if g == nil {
		return nil, ErrNoGraph
	}
	if rt == nil {
		return nil, ErrNoParams
	}
	r := Run{
		id:     xid.New(),
		rt:     rt,
		log:    log.GetLogger(),
		metric: metric.New(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.log = r.log.WithField("run", r.id.String())
	r.bind(g)
	if r.publish {
		metric.Publish(r.id.String(), r.metric)
	}
	r.log.WithField("graph", g.String()).Debug("run constructed")
	return &r, nil
}

// bind creates executors for every component.
func (r *Run) bind(g *flowgraph.Graph) {
	names := uniqueNames(g)
	r.stages = make([]stage, 0, len(g.Processors)+2)

	sender := runtime.AsyncLink()
	r.stages = append(r.stages, stage{
		name:     names[0],
		Executor: runtime.SourceExecutor(g.Source, sender, r.stop, r.metric.Meter(names[0], g.Source.Output.SampleRate)),
	})
	for i := range g.Processors {
		var receiver runtime.Link
		receiver, sender = sender, runtime.AsyncLink()
		name := names[i+1]
		r.stages = append(r.stages, stage{
			name:     name,
			Executor: runtime.ProcessExecutor(g.Processors[i], receiver, sender, r.metric.Meter(name, g.Processors[i].Output.SampleRate)),
		})
	}
	edges := g.Edges()
	name := names[len(names)-1]
	r.stages = append(r.stages, stage{
		name:     name,
		Executor: runtime.SinkExecutor(g.Sink, sender, r.metric.Meter(name, edges[len(edges)-1].SampleRate)),
	})
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id.String()
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start calls start hooks of all stages and starts the execution. If any
// hook fails, already started stages are flushed, the run is stopped and
// the error is returned.
func (r *Run) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Constructed {
		return fmt.Errorf("%w: start %v run", ErrInvalidState, r.state)
	}

	executors := make([]runtime.Executor, 0, len(r.stages))
	for i := range r.stages {
		executors = append(executors, r.stages[i].Executor)
	}
	ctx, cancelFn := context.WithCancel(ctx)
	if err := runtime.StartAll(ctx, executors...); err != nil {
		cancelFn()
		r.finish(err)
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i := range r.stages {
		s := r.stages[i]
		eg.Go(func() error {
			if err := runtime.Run(ctx, s.Executor); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			return nil
		})
	}
	r.state = Running
	r.log.Info("run started")

	go func() {
		err := eg.Wait()
		cancelFn()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.finish(err)
	}()
	return nil
}

// finish moves the run into Stopped state. Must be called with the lock
// held.
func (r *Run) finish(err error) {
	r.state = Stopped
	r.err = err
	r.rt.Close()
	if err != nil {
		r.log.WithError(err).Warn("run stopped")
	} else {
		r.log.WithField("measure", r.metric.Measure()).Info("run stopped")
	}
	close(r.done)
}

// Stop ends the source stream and waits until all blocks are drained and
// the stages are flushed. It is safe to call multiple times and from
// multiple goroutines. A run that was never started is stopped right
// away.
func (r *Run) Stop() error {
	r.mu.Lock()
	if r.state == Constructed {
		r.finish(nil)
	}
	r.mu.Unlock()

	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
	return r.terminal()
}

// Wait blocks until the run is stopped. It returns the first error that
// occurred in the stages, nil if the source reached its end or the run
// was stopped.
func (r *Run) Wait() error {
	if r.State() == Constructed {
		return fmt.Errorf("%w: wait for %v run", ErrInvalidState, Constructed)
	}
	<-r.done
	return r.terminal()
}

func (r *Run) terminal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Measure returns counters of all stages.
func (r *Run) Measure() metric.Measure {
	return r.metric.Measure()
}

// Stages returns the stage names used in Measure, in graph order.
func (r *Run) Stages() []string {
	return r.metric.Components()
}

// SampleRate returns the current input sample rate.
func (r *Run) SampleRate() int {
	return r.rt.SampleRate()
}

// SetSampleRate changes the input sample rate. Every stage has rebuilt
// its state when it returns.
func (r *Run) SetSampleRate(v int) error {
	if err := r.checkMutable(); err != nil {
		return err
	}
	if err := r.rt.SetSampleRate(v); err != nil {
		return r.mutationError(err)
	}
	r.log.WithField("sample_rate", v).Info("sample rate changed")
	return nil
}

// Freq returns the current center frequency.
func (r *Run) Freq() float64 {
	return r.rt.Freq()
}

// SetFreq changes the center frequency.
func (r *Run) SetFreq(v float64) error {
	if err := r.checkMutable(); err != nil {
		return err
	}
	if err := r.rt.SetFreq(v); err != nil {
		return r.mutationError(err)
	}
	r.log.WithField("freq", v).Info("freq changed")
	return nil
}

func (r *Run) checkMutable() error {
	if s := r.State(); s == Stopped {
		return fmt.Errorf("%w: mutate %v run", ErrInvalidState, s)
	}
	return nil
}

// mutationError maps errors of parameters closed by a concurrent stop.
func (r *Run) mutationError(err error) error {
	if errors.Is(err, params.ErrClosed) {
		return fmt.Errorf("%w: mutate %v run", ErrInvalidState, Stopped)
	}
	return err
}

// uniqueNames returns component names in graph order. Repeated names get
// an index suffix.
func uniqueNames(g *flowgraph.Graph) []string {
	names := make([]string, 0, len(g.Processors)+2)
	names = append(names, g.Source.Name)
	for i := range g.Processors {
		names = append(names, g.Processors[i].Name)
	}
	names = append(names, g.Sink.Name)

	seen := make(map[string]int, len(names))
	for i, n := range names {
		if c := seen[n]; c > 0 {
			names[i] = fmt.Sprintf("%s-%d", n, c)
		}
		seen[n]++
	}
	return names
}
