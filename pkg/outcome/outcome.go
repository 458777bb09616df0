// Package outcome defines the tagged result values and failure taxonomy
// shared by every fallible automation operation. Operations return an
// Outcome instead of raising; callers inspect the kind explicitly.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the three possible results of a retried operation.
type Kind int

const (
	// KindSuccess means the operation completed and any value is valid.
	KindSuccess Kind = iota

	// KindRetryable means the operation failed in a way that may succeed
	// on a later attempt against the same session.
	KindRetryable

	// KindFatal means the underlying session is unusable and the operation
	// must not be retried in place.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Class is the failure taxonomy used for logging and summary reporting.
type Class string

const (
	// ClassTransientUI covers elements that are not ready, stale, or
	// obstructed. Resolved locally by retrying.
	ClassTransientUI Class = "transient_ui"

	// ClassContentRejected means a delivery strategy failed verification;
	// the next strategy in the chain is attempted.
	ClassContentRejected Class = "content_rejected"

	// ClassSessionFatal means the browser session or process is
	// invalidated. Triggers recovery, never an in-place retry.
	ClassSessionFatal Class = "session_fatal"

	// ClassDataIntegrity covers ledger corruption and fingerprint
	// mismatches. Requires explicit disposition, never silently resolved.
	ClassDataIntegrity Class = "data_integrity"

	// ClassExhaustedRetries means a retryable failure persisted past the
	// attempt budget. Recorded per recipient; the run continues.
	ClassExhaustedRetries Class = "exhausted_retries"
)

// Outcome is the transient result of one retried operation. It is never
// persisted; the retry controller and orchestrator consume it immediately.
type Outcome struct {
	Kind   Kind
	Class  Class
	Reason string
	Err    error
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

// Retryable returns a retryable failure with the given class and cause.
func Retryable(class Class, err error) Outcome {
	return Outcome{Kind: KindRetryable, Class: class, Reason: reasonOf(err), Err: err}
}

// Fatal returns a fatal failure. Class is always ClassSessionFatal.
func Fatal(err error) Outcome {
	return Outcome{Kind: KindFatal, Class: ClassSessionFatal, Reason: reasonOf(err), Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// IsFatal reports whether the outcome means the session is unusable.
func (o Outcome) IsFatal() bool { return o.Kind == KindFatal }

func (o Outcome) String() string {
	if o.OK() {
		return "success"
	}
	return fmt.Sprintf("%s (%s): %s", o.Kind, o.Class, o.Reason)
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// fatalSignals are substrings of driver errors that indicate the browser
// session or its transport is gone. Matching is case-insensitive.
var fatalSignals = []string{
	"invalid session id",
	"session deleted as the browser has closed the connection",
	"not connected to devtools",
	"target page, context or browser has been closed",
	"browser closed",
	"failed to establish a new connection",
	"connection refused",
	"actively refused",
	"max retries exceeded",
}

// IsFatalError reports whether err carries one of the known session-fatal
// signals. A nil error is never fatal.
func IsFatalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range fatalSignals {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Classify converts an error from a driver operation into an Outcome,
// routing known fatal signals to KindFatal and everything else to a
// retryable failure of the given class.
func Classify(class Class, err error) Outcome {
	if err == nil {
		return Success()
	}
	if IsFatalError(err) {
		return Fatal(err)
	}
	return Retryable(class, err)
}

// ErrTerminated is returned by components when the session lifecycle has
// reached its terminal state and the run must stop.
var ErrTerminated = errors.New("session terminated")
