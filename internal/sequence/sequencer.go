package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
)

// baseNumber seeds the sequence when the table is empty or the latest
// number does not parse; the first assigned number is then #1001.
const baseNumber = 1000

const maxLockAttempts = 3

// NumberSource reads the latest assigned order number under a row lock.
type NumberSource interface {
	LockLatestNumber(ctx context.Context) (string, error)
}

// Module provides the sequencer to Fx.
var Module = fx.Provide(func(repo *orderrepo.Repository, logger *zap.Logger) *Sequencer {
	return New(repo, logger)
})

// Sequencer hands out the next human-facing order number. Numbers follow
// chronological processing order: the locked read targets the most recently
// processed order, not the most recently imported one.
type Sequencer struct {
	source NumberSource
	logger *zap.Logger
}

// New constructs a Sequencer over the given number source.
func New(source NumberSource, logger *zap.Logger) *Sequencer {
	return &Sequencer{source: source, logger: logger}
}

// NextOrderNumber returns the next sequential number, formatted "#<n>".
// Lock contention is retried a bounded number of times; after that the
// failure surfaces, never a possibly duplicated number.
func (s *Sequencer) NextOrderNumber(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		latest, err := s.source.LockLatestNumber(ctx)
		if err == nil {
			return Format(parseSuffix(latest) + 1), nil
		}
		if !errors.Is(err, orderrepo.ErrLockContention) {
			return "", err
		}
		lastErr = err
		if s.logger != nil {
			s.logger.Warn("order number lock contended", zap.Int("attempt", attempt), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return "", fmt.Errorf("order number lock: %w", lastErr)
}

// Format renders an order number with its leading '#'.
func Format(n int64) string {
	return fmt.Sprintf("#%d", n)
}

// parseSuffix extracts the numeric part of a stored order number, falling
// back to the base when absent or unparsable.
func parseSuffix(number string) int64 {
	trimmed := strings.TrimPrefix(strings.TrimSpace(number), "#")
	if trimmed == "" {
		return baseNumber
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n < 0 {
		return baseNumber
	}
	return n
}
