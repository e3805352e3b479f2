package remote

import "time"

// Config holds the authoritative scheduler endpoint configuration.
type Config struct {
	// BaseURL is the root of the remote scheduling service,
	// e.g. "https://api.example.com/v1".
	BaseURL string

	// Timeout is the HTTP timeout for one submission attempt; each retry
	// gets a fresh timeout. Default: 15s.
	Timeout time.Duration

	Retry RetryConfig
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults for everything
// except BaseURL, which has no default.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
	}
}
