package job

import (
	"context"
	"time"
)

// SleepWork returns a runnable that sleeps for d, or less if ctx ends first.
func SleepWork(d time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			// If the time is up, we just return nil.
			return nil
		}
	}
}

// Spin busy-waits for d. Unlike SleepWork it keeps the OS thread on-CPU,
// the way a render or physics step would.
func Spin(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
