package outcome

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_NilError(t *testing.T) {
	o := Classify(ClassTransientUI, nil)
	assert.True(t, o.OK())
	assert.False(t, o.IsFatal())
}

func TestClassify_RetryableError(t *testing.T) {
	o := Classify(ClassTransientUI, errors.New("element not visible"))
	assert.Equal(t, KindRetryable, o.Kind)
	assert.Equal(t, ClassTransientUI, o.Class)
	assert.Equal(t, "element not visible", o.Reason)
}

func TestClassify_FatalSignals(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{
			name:  "invalid session id",
			err:   errors.New("chrome: Invalid Session ID: session not found"),
			fatal: true,
		},
		{
			name:  "browser closed connection",
			err:   errors.New("session deleted as the browser has closed the connection"),
			fatal: true,
		},
		{
			name:  "devtools disconnect",
			err:   errors.New("not connected to DevTools"),
			fatal: true,
		},
		{
			name:  "playwright target closed",
			err:   errors.New("Target page, context or browser has been closed"),
			fatal: true,
		},
		{
			name:  "connection refused",
			err:   fmt.Errorf("dial tcp: %w", errors.New("connection refused")),
			fatal: true,
		},
		{
			name:  "ordinary timeout",
			err:   errors.New("timeout 30000ms exceeded waiting for selector"),
			fatal: false,
		},
		{
			name:  "stale element",
			err:   errors.New("element is not attached to the DOM"),
			fatal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatalError(tt.err))

			o := Classify(ClassTransientUI, tt.err)
			if tt.fatal {
				assert.Equal(t, KindFatal, o.Kind)
				assert.Equal(t, ClassSessionFatal, o.Class)
			} else {
				assert.Equal(t, KindRetryable, o.Kind)
			}
		})
	}
}

func TestIsFatalError_Nil(t *testing.T) {
	assert.False(t, IsFatalError(nil))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "success", Success().String())

	o := Retryable(ClassContentRejected, errors.New("length mismatch"))
	assert.Contains(t, o.String(), "retryable")
	assert.Contains(t, o.String(), "content_rejected")
	assert.Contains(t, o.String(), "length mismatch")
}
