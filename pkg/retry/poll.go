package retry

import (
	"context"
	"fmt"
	"time"
)

// Poll evaluates predicate every interval until it returns true, the
// timeout elapses, or ctx is cancelled. It replaces ad hoc sleep loops at
// every wait site: all waits are bounded and explicit.
func Poll(ctx context.Context, interval, timeout time.Duration, predicate func() (bool, error)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := predicate()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %s", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
