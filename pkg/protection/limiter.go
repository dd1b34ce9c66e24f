// Package protection guards request entry points against bursts
package protection

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by all callers of one entry point
type Limiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewLimiter allows rps requests per second on average with bursts of up to burst.
// A non-positive rps or burst returns nil, which allows everything.
func NewLimiter(rps float64, burst int) *Limiter {
	return newLimiter(rps, burst, time.Now)
}

func newLimiter(rps float64, burst int, now func() time.Time) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		now:     now,
	}
}

// Allow takes a token if one is available
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.AllowN(l.now(), 1)
}

// Available returns the whole tokens left without taking one
func (l *Limiter) Available() int {
	if l == nil {
		return -1
	}
	return int(l.limiter.TokensAt(l.now()))
}
