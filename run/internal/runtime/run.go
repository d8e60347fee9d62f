package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

type (
	// Executor executes a single DSP operation.
	Executor interface {
		Execute(context.Context) error
		Start(context.Context) error
		Flush(context.Context) error
	}

	execErrors []error
)

// Run executes the component until it returns an error. Flush hook is
// always called. io.EOF means the component is done and is not returned.
func Run(ctx context.Context, e Executor) error {
	var err error
	for err == nil {
		err = e.Execute(ctx)
	}
	if errors.Is(err, io.EOF) {
		err = nil
	} else {
		err = fmt.Errorf("error running component: %w", err)
	}
	if flushErr := e.Flush(ctx); flushErr != nil {
		if err == nil {
			return fmt.Errorf("error flushing component: %w", flushErr)
		}
		return execErrors{err, fmt.Errorf("error flushing component: %w", flushErr)}
	}
	return err
}

// StartAll calls start hooks of executors in order. If any of them fails,
// already started executors are flushed in reverse order and the combined
// error is returned.
func StartAll(ctx context.Context, executors ...Executor) error {
	for i := range executors {
		if err := executors[i].Start(ctx); err != nil {
			errs := execErrors{fmt.Errorf("error starting component: %w", err)}
			for j := i - 1; j >= 0; j-- {
				if err := executors[j].Flush(ctx); err != nil {
					errs = append(errs, fmt.Errorf("error flushing component during start error: %w", err))
				}
			}
			return errs.ret()
		}
	}
	return nil
}

func (e execErrors) Error() string {
	s := make([]string, 0, len(e))
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ", ")
}

// Unwrap allows errors.Is to match any of the errors.
func (e execErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e execErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
