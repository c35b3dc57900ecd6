package liveclient

import (
	"math/rand/v2"
	"time"
)

// BackoffFunc returns the wait before reconnect attempt n (n starts at 1).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles base per attempt up to max and keeps a random half as jitter.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		half := d / 2
		return half + time.Duration(rand.Int64N(int64(half)+1))
	}
}
