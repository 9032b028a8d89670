package config

import (
	"os"
	"strings"
)

// RecurrenceResetOnConforming switches recurrence streaks to reset to zero
// when an item is answered as conforming. Default behavior keeps the running
// count monotonic across inspections.
//
// Set via env:
// - RECURRENCE_RESET_ON_CONFORMING=true
func RecurrenceResetOnConforming() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECURRENCE_RESET_ON_CONFORMING")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// DisableRateLimiter turns off the redis-backed request rate limiter.
//
// Set via env:
// - DISABLE_RATE_LIMITER=true
func DisableRateLimiter() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DISABLE_RATE_LIMITER")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
