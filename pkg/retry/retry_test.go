package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/outcome"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:       maxAttempts,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 1.0,
		Classifier: func(err error) outcome.Outcome {
			return outcome.Classify(outcome.ClassTransientUI, err)
		},
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	c := NewController(nil)
	calls := 0

	o := c.Run(context.Background(), "op", fastPolicy(5), func() error {
		calls++
		return nil
	})

	assert.True(t, o.OK())
	assert.Equal(t, 1, calls)
}

func TestRun_RetriesUpToMaxAttempts(t *testing.T) {
	c := NewController(nil)
	calls := 0

	o := c.Run(context.Background(), "op", fastPolicy(3), func() error {
		calls++
		return errors.New("element not ready")
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, outcome.KindRetryable, o.Kind)
	assert.Equal(t, outcome.ClassExhaustedRetries, o.Class)
	assert.Contains(t, o.Reason, "exhausted 3 attempts")
}

func TestRun_SucceedsAfterTransientFailures(t *testing.T) {
	c := NewController(nil)
	calls := 0

	o := c.Run(context.Background(), "op", fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("stale element")
		}
		return nil
	})

	assert.True(t, o.OK())
	assert.Equal(t, 3, calls)
}

func TestRun_FatalShortCircuits(t *testing.T) {
	c := NewController(nil)
	calls := 0

	o := c.Run(context.Background(), "op", fastPolicy(5), func() error {
		calls++
		return errors.New("invalid session id")
	})

	// A fatal failure must never consume additional attempts.
	assert.Equal(t, 1, calls)
	assert.True(t, o.IsFatal())
	assert.Equal(t, outcome.ClassSessionFatal, o.Class)
}

func TestRun_ContextCancelledBetweenAttempts(t *testing.T) {
	c := NewController(nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := fastPolicy(10)
	policy.BaseDelay = 50 * time.Millisecond

	o := c.Run(ctx, "op", policy, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, outcome.KindRetryable, o.Kind)
}

func TestRun_BackoffGrows(t *testing.T) {
	c := NewController(nil)

	policy := Policy{
		MaxAttempts:       3,
		BaseDelay:         10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Classifier: func(err error) outcome.Outcome {
			return outcome.Classify(outcome.ClassTransientUI, err)
		},
	}

	start := time.Now()
	c.Run(context.Background(), "op", policy, func() error {
		return errors.New("nope")
	})
	elapsed := time.Since(start)

	// Delays of 10ms then 20ms between three attempts.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestRun_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	c := NewController(nil)
	calls := 0

	c.Run(context.Background(), "op", Policy{}, func() error {
		calls++
		return nil
	})

	assert.Equal(t, 1, calls)
}

func TestPoll_PredicateEventuallyTrue(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_Timeout(t *testing.T) {
	err := Poll(context.Background(), time.Millisecond, 10*time.Millisecond, func() (bool, error) {
		return false, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "condition not met")
}

func TestPoll_PredicateError(t *testing.T) {
	boom := errors.New("boom")
	err := Poll(context.Background(), time.Millisecond, time.Second, func() (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, time.Millisecond, time.Second, func() (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
