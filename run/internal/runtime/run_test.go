package runtime_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/lvatt/flowgraph/run/internal/runtime"
)

type executorMock struct {
	executions   int
	limit        int
	started      bool
	flushed      bool
	errOnExecute error
	errOnStart   error
	errOnFlush   error
}

func (e *executorMock) Execute(context.Context) error {
	if e.errOnExecute != nil {
		return e.errOnExecute
	}
	if e.executions == e.limit {
		return io.EOF
	}
	e.executions++
	return nil
}

func (e *executorMock) Start(context.Context) error {
	e.started = true
	return e.errOnStart
}

func (e *executorMock) Flush(context.Context) error {
	e.flushed = true
	return e.errOnFlush
}

func TestRun(t *testing.T) {
	testRun := func(e *executorMock, expected error) func(*testing.T) {
		return func(t *testing.T) {
			err := runtime.Run(context.Background(), e)
			if expected == nil {
				assertEqual(t, "run error", err, nil)
			} else if !errors.Is(err, expected) {
				t.Fatalf("run error: %v expected: %v", err, expected)
			}
			assertEqual(t, "flushed", e.flushed, true)
		}
	}
	t.Run("ok", testRun(&executorMock{limit: 10}, nil))
	t.Run("execute error", testRun(&executorMock{errOnExecute: mockError}, mockError))
	t.Run("flush error", testRun(&executorMock{errOnFlush: mockError}, mockError))
	t.Run("wrapped eof", testRun(&executorMock{errOnExecute: errWrappedEOF}, nil))

	flushErr := errors.New("flush error")
	e := &executorMock{errOnExecute: mockError, errOnFlush: flushErr}
	err := runtime.Run(context.Background(), e)
	assertEqual(t, "execute error kept", errors.Is(err, mockError), true)
	assertEqual(t, "flush error kept", errors.Is(err, flushErr), true)
}

var errWrappedEOF = errorWrapper{io.EOF}

type errorWrapper struct{ err error }

func (e errorWrapper) Error() string { return "wrapped: " + e.err.Error() }
func (e errorWrapper) Unwrap() error { return e.err }

func TestStartAll(t *testing.T) {
	ok1, ok2 := &executorMock{}, &executorMock{}
	err := runtime.StartAll(context.Background(), ok1, ok2)
	assertEqual(t, "start error", err, nil)
	assertEqual(t, "started", ok1.started && ok2.started, true)
	assertEqual(t, "not flushed", ok1.flushed || ok2.flushed, false)

	first, failing, last := &executorMock{}, &executorMock{errOnStart: mockError}, &executorMock{}
	err = runtime.StartAll(context.Background(), first, failing, last)
	assertEqual(t, "start error", errors.Is(err, mockError), true)
	assertEqual(t, "first flushed", first.flushed, true)
	assertEqual(t, "failing not flushed", failing.flushed, false)
	assertEqual(t, "last not started", last.started, false)
}
