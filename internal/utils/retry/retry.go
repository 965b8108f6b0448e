// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts bounds the number of calls; zero retries until the
	// context is done.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns the reconnect defaults.
func DefaultConfig() Config {
	return Config{
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
	}
}

// Do executes fn with retry logic using default config.
func Do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return DoWithConfig(ctx, DefaultConfig(), nil, fn)
}

// DoWithConfig executes fn until it succeeds, the attempts run out or ctx
// is done. onRetry, when set, sees every failed attempt before the wait.
func DoWithConfig[T any](ctx context.Context, cfg Config, onRetry func(attempt int, wait time.Duration, err error), fn func() (T, error)) (T, error) {
	var result T
	var err error

	wait := cfg.InitialWait
	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result, err = fn()
		if err == nil {
			return result, nil
		}

		// Don't wait after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
		wait = Next(cfg, wait)
	}
	return result, err
}

// Next returns the wait following wait.
func Next(cfg Config, wait time.Duration) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait = time.Duration(float64(wait) * multiplier)
	if cfg.MaxWait > 0 && wait > cfg.MaxWait {
		wait = cfg.MaxWait
	}
	return wait
}
