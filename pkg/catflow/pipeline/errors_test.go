package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"stage", &StageError{Stage: StageLoad, Err: cause}, "stage load: disk full"},
		{"panic", &PanicError{Stage: StageTransform, Value: "nil map"}, "stage transform panicked: nil map"},
		{"cancelled before", &CancellationError{Stage: StageExtract, Cause: context.Canceled}, "cancelled before stage extract: context canceled"},
		{"cancelled during", &CancellationError{Stage: StageLoad, Cause: context.DeadlineExceeded, WasExecuting: true}, "cancelled during stage load: context deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.want)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	assert.ErrorIs(t, &StageError{Stage: StageLoad, Err: cause}, cause)
	assert.ErrorIs(t, &CancellationError{Stage: StageLoad, Cause: context.DeadlineExceeded}, context.DeadlineExceeded)
}
