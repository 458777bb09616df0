// Package retry wraps fallible automation operations with bounded
// attempts, exponential backoff, and typed failure classification.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/outcome"
)

// Classifier converts a raised error into an Outcome. It decides whether
// the failure is retryable or fatal.
type Classifier func(err error) outcome.Outcome

// Policy configures a Controller run.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int

	// BaseDelay is the sleep before the second attempt.
	BaseDelay time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	// A multiplier of 1 gives a constant delay.
	BackoffMultiplier float64

	// Classifier maps operation errors to outcomes. Defaults to
	// outcome.Classify with ClassTransientUI.
	Classifier Classifier
}

// DefaultPolicy mirrors the retry behavior used for element interaction:
// five attempts, two-second base delay, no backoff growth.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		BaseDelay:         2 * time.Second,
		BackoffMultiplier: 1.0,
		Classifier: func(err error) outcome.Outcome {
			return outcome.Classify(outcome.ClassTransientUI, err)
		},
	}
}

// Controller runs operations under a policy, logging each attempt.
type Controller struct {
	log *logging.Logger
}

// NewController creates a retry controller. logger may be nil, in which
// case attempts are not logged.
func NewController(logger *logging.Logger) *Controller {
	return &Controller{log: logger}
}

// Run executes op under the policy. Fatal failures short-circuit the
// remaining attempts and propagate immediately; they are never retried,
// since the session is unusable and the remedy is session recovery, not
// another attempt. Exhausting the attempt budget on retryable failures
// yields the last retryable outcome with ClassExhaustedRetries.
func (c *Controller) Run(ctx context.Context, name string, policy Policy, op func() error) outcome.Outcome {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	classify := policy.Classifier
	if classify == nil {
		classify = DefaultPolicy().Classifier
	}

	var last outcome.Outcome
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return outcome.Retryable(outcome.ClassTransientUI, err)
		}

		err := op()
		if err == nil {
			return outcome.Success()
		}

		last = classify(err)
		if last.OK() {
			return last
		}
		if last.IsFatal() {
			c.warnf("%s: fatal on attempt %d/%d: %v", name, attempt, policy.MaxAttempts, err)
			return last
		}

		if attempt < policy.MaxAttempts {
			c.warnf("%s: attempt %d/%d failed, retrying in %s: %v",
				name, attempt, policy.MaxAttempts, delay, err)
			if !sleepCtx(ctx, delay) {
				return outcome.Retryable(outcome.ClassTransientUI, ctx.Err())
			}
			delay = time.Duration(float64(delay) * policy.BackoffMultiplier)
		}
	}

	c.warnf("%s: exhausted %d attempts: %s", name, policy.MaxAttempts, last.Reason)
	return outcome.Outcome{
		Kind:   outcome.KindRetryable,
		Class:  outcome.ClassExhaustedRetries,
		Reason: fmt.Sprintf("exhausted %d attempts: %s", policy.MaxAttempts, last.Reason),
		Err:    last.Err,
	}
}

func (c *Controller) warnf(format string, v ...interface{}) {
	if c.log != nil {
		c.log.Warnf(format, v...)
	}
}

// Sleep pauses for d or until ctx is done. Returns false if the context
// expired first.
func Sleep(ctx context.Context, d time.Duration) bool {
	return sleepCtx(ctx, d)
}

// sleepCtx sleeps for d or until ctx is done. Returns false if the
// context expired first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
