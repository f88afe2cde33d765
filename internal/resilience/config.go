package resilience

import (
	"time"
)

// FromRetryConfig builds a RetryPolicy from config values. Zero values keep
// the defaults; maxAttempts <= 1 disables retries.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryPolicy {
	if maxAttempts <= 1 {
		return NoRetry()
	}
	p := DefaultRetryPolicy()
	p.MaxAttempts = maxAttempts
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}
