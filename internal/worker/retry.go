package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy schedules journal replays with capped exponential backoff.
// Attempts count the original failure, so a freshly journaled row has
// Attempts == 1.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads each delay by up to ±Jitter of its value so rows that
	// failed together do not replay in lockstep. Zero disables it.
	Jitter float64

	random func() float64
}

// Exhausted reports whether a row with this many attempts should be given up.
func (r RetryPolicy) Exhausted(attempts int) bool {
	return r.MaxRetries > 0 && attempts >= r.MaxRetries
}

// Backoff returns the un-jittered delay after the given attempt (1-based).
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if d <= 0 || (r.MaxDelay > 0 && d > r.MaxDelay) {
		// overflow lands here too
		d = r.MaxDelay
	}
	if d <= 0 {
		d = initial
	}
	return d
}

// NextRetryAt is when a row that just failed its attempt-th try becomes due.
func (r RetryPolicy) NextRetryAt(now time.Time, attempt int) time.Time {
	d := r.Backoff(attempt)
	if r.Jitter > 0 {
		random := r.random
		if random == nil {
			random = rand.Float64
		}
		spread := math.Min(r.Jitter, 1)
		d = time.Duration(float64(d) * (1 + spread*(2*random()-1)))
		if r.MaxDelay > 0 && d > r.MaxDelay {
			d = r.MaxDelay
		}
	}
	return now.Add(d)
}
