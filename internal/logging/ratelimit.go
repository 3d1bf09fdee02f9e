package logging

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// WarnLimiter throttles a Logger's below-error output (warnings and lower)
// to at most once per window per category, while error entries always pass, matching spec section 7's "a per-bearer warning is
// emitted at most once per second". One WarnLimiter is typically shared by
// all bearers/HARQs of a single cell, keyed by an arbitrary comparable
// category (e.g. a (ueID, lcid) pair or a HARQ handle).
type WarnLimiter struct {
	logger  Logger
	limiter *catrate.Limiter
}

// NewWarnLimiter wraps logger so that below-error calls sharing the same
// category are rate-limited to one per window; error calls are never
// limited.
func NewWarnLimiter(logger Logger, window time.Duration) *WarnLimiter {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &WarnLimiter{
		logger:  logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{window: 1}),
	}
}

// Log emits e.Category+Bearer+UEID keyed by category unless suppressed by
// the rate limiter; it is always forwarded when e.Level is LevelError so
// invariant violations are never silently dropped.
func (w *WarnLimiter) Log(category any, e Entry) {
	if e.Level >= LevelError {
		w.logger.Log(e)
		return
	}
	if _, ok := w.limiter.Allow(category); ok {
		w.logger.Log(e)
	}
}
