package core

import (
	"fmt"
	"sync/atomic"
)

// ModelLimiter caps how many model calls a single invocation may make, the
// guard against runaway tool loops. A limit of zero disables the cap.
type ModelLimiter struct {
	limit int
	calls atomic.Int64
}

// NewModelLimiter returns a limiter allowing at most limit calls, or
// unlimited calls when limit is zero.
func NewModelLimiter(limit int) *ModelLimiter {
	return &ModelLimiter{limit: limit}
}

// Increment consumes one call, failing once the cap is crossed.
func (l *ModelLimiter) Increment() error {
	n := l.calls.Add(1)
	if l.limit > 0 && n > int64(l.limit) {
		return fmt.Errorf("model call budget of %d exhausted", l.limit)
	}
	return nil
}

// Count reports the calls consumed so far.
func (l *ModelLimiter) Count() int { return int(l.calls.Load()) }
