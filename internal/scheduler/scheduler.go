package scheduler

import (
	"context"
	"log"
	"time"
)

// MaxBackoff caps how many intervals repeated failures can stretch a wait to.
const MaxBackoff = 8

type Task func(ctx context.Context) error

// Every runs task immediately and then once per interval until ctx is done.
// Each consecutive failure doubles the wait up to MaxBackoff intervals, so a
// rate-limited upstream is not hit at full rate; a success resets it.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	failures := 0
	for {
		if err := task(ctx); err != nil {
			failures++
			log.Printf("[%s] error: %v (next run in %s)", name, err, Delay(interval, failures))
		} else {
			failures = 0
		}

		t := time.NewTimer(Delay(interval, failures))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Delay is the wait before the next run after the given number of
// consecutive failures.
func Delay(interval time.Duration, failures int) time.Duration {
	d := interval
	for i := 0; i < failures && d < MaxBackoff*interval; i++ {
		d *= 2
	}
	return d
}
