package pipeline

import (
	"errors"
	"fmt"
)

// ErrNilContext indicates Run was called with a nil context.
var ErrNilContext = errors.New("context cannot be nil")

// StageError wraps an error with the stage that produced it.
type StageError struct {
	// Stage is the name of the stage that failed.
	Stage string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a stage.
type PanicError struct {
	Stage string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

// CancellationError reports a run stopped by its context.
type CancellationError struct {
	// Stage is the stage that was about to run or was running.
	Stage string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true if cancellation interrupted the stage.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during stage %s: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("cancelled before stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
