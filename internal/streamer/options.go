package streamer

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/NissesSenap/tweet-pipeline/internal/logging"
	"github.com/NissesSenap/tweet-pipeline/internal/retry"
)

const (
	// Defaults used when the matching option is not given.
	DefaultWorkers  = 3
	DefaultMaxRows  = 500
	DefaultMaxDelay = 5 * time.Second

	// insertAll accepts at most 50,000 rows per request; Google recommends
	// 500.
	maxRowsLimit = 50000
)

// Option configures a Streamer.
type Option func(*Streamer) error

// WithWorkers sets how many workers read rows concurrently.
func WithWorkers(n int) Option {
	return func(s *Streamer) error {
		if n < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", n)
		}
		s.workers = n
		return nil
	}
}

// WithMaxRows sets how many rows a worker buffers before flushing.
func WithMaxRows(n int) Option {
	return func(s *Streamer) error {
		if n < 1 || n > maxRowsLimit {
			return fmt.Errorf("max rows must be between 1 and %d, got %d", maxRowsLimit, n)
		}
		s.maxRows = n
		return nil
	}
}

// WithMaxDelay sets how long rows may sit in a buffer before a flush.
func WithMaxDelay(d time.Duration) Option {
	return func(s *Streamer) error {
		if d <= 0 {
			return fmt.Errorf("max delay must be positive, got %s", d)
		}
		s.maxDelay = d
		return nil
	}
}

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Streamer) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		s.clock = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Streamer) error {
		s.logger = logging.OrNop(l)
		return nil
	}
}

// WithRetry sets the policy for failed insertAll calls.
func WithRetry(p retry.Policy) Option {
	return func(s *Streamer) error {
		if p.Attempts < 1 {
			return fmt.Errorf("retry attempts must be at least 1, got %d", p.Attempts)
		}
		s.retry = p
		return nil
	}
}
