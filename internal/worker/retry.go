package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// retryWithBackoff runs fn up to maxAttempts times, doubling the delay after
// each failed attempt starting from base. Respects ctx between attempts.
func retryWithBackoff(ctx context.Context, logger *logrus.Logger, maxAttempts int, base time.Duration, fn func() error) error {
	var lastErr error
	delay := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			logger.WithField("attempt", attempt).Errorf("attempt %d/%d failed: %v", attempt, maxAttempts, err)
			if attempt < maxAttempts {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
				delay *= 2
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
