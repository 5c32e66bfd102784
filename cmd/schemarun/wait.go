package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cargotrail/schemarun"
	"github.com/cargotrail/schemarun/internal/constants"
	"github.com/cargotrail/schemarun/internal/dialect"
	"github.com/cargotrail/schemarun/internal/retry"
)

// parseWaitConfig normalizes the wait section with defaults.
func parseWaitConfig(wc WaitConfig) (timeout, interval time.Duration) {
	timeout = constants.DefaultWaitTimeout
	if s := strings.TrimSpace(wc.Timeout); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			timeout = d
		}
	}
	interval = constants.DefaultWaitInterval
	if s := strings.TrimSpace(wc.Interval); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			interval = d
		}
	}
	return timeout, interval
}

// waitForStore pings the configured database with fixed-interval retries
// until it responds or the timeout elapses. A zero-value wait section
// disables the probe.
func waitForStore(ctx context.Context, cfg schemarun.StoreConfig, wc WaitConfig) error {
	if strings.TrimSpace(wc.Timeout) == "" && strings.TrimSpace(wc.Interval) == "" {
		return nil
	}

	timeout, interval := parseWaitConfig(wc)
	attempts := int(timeout / interval)
	if attempts < 1 {
		attempts = 1
	}

	rc := &retry.Config{
		MaxRetries:    attempts,
		InitialDelay:  interval,
		MaxDelay:      interval,
		BackoffFactor: 1.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"no such host",
			"failed to ping",
			"database is locked",
		},
	}

	err := retry.WithRetry(ctx, rc, func() error {
		db, err := dialect.Open(dialect.Config{Driver: cfg.Driver, DriverConfig: cfg.DriverConfig})
		if err != nil {
			return err
		}
		return db.Close()
	})
	if err != nil {
		return fmt.Errorf("wait: database not ready after %s: %w", timeout, err)
	}
	return nil
}
