// Package util holds small shared helpers.
package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound API calls with a token bucket. The Sonar
// client and the generative repairer each own one.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows perSecond sustained events with bursts up to
// burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until n tokens are available or the context ends.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.bucket.WaitN(ctx, n)
}

// Allow reports whether one event may proceed right now without
// waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
