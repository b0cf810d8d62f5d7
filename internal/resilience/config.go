package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig. backoff selects
// the delay schedule: "polynomial" or anything else for exponential.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, backoff string) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if backoff == "polynomial" {
		cfg.Backoff = PolynomialBackoff
	}
	return cfg
}
