// Package publisher sends JSON-lines tweet files to a Pub/Sub topic.
package publisher

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NissesSenap/tweet-pipeline/internal/logging"
	"github.com/NissesSenap/tweet-pipeline/internal/tweet"
)

// maxLineSize bounds a single tweet line. Pub/Sub accepts up to 10MB per
// message; tweets are far smaller.
const maxLineSize = 1 << 20

// Publisher publishes tweets to one topic.
type Publisher struct {
	pub     *pubsub.Publisher
	limiter *rate.Limiter
	logger  *zap.Logger
}

type settings struct {
	rps            float64
	countThreshold int
	delayThreshold time.Duration
	logger         *zap.Logger
}

// Option configures a Publisher.
type Option func(*settings)

// WithRateLimit limits publishes to rps per second, with bursts of twice
// that. Zero or less disables the limit.
func WithRateLimit(rps float64) Option {
	return func(s *settings) { s.rps = rps }
}

// WithBatching overrides the client's batching thresholds. Zero values
// keep the client defaults.
func WithBatching(count int, delay time.Duration) Option {
	return func(s *settings) {
		s.countThreshold = count
		s.delayThreshold = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New returns a Publisher for topic, given as an ID or a full
// projects/{project}/topics/{topic} name. The topic must exist.
func New(client *pubsub.Client, topic string, opts ...Option) *Publisher {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	pub := client.Publisher(topic)
	if s.countThreshold > 0 {
		pub.PublishSettings.CountThreshold = s.countThreshold
	}
	if s.delayThreshold > 0 {
		pub.PublishSettings.DelayThreshold = s.delayThreshold
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if s.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rps), max(1, int(s.rps*2)))
	}

	return &Publisher{
		pub:     pub,
		limiter: limiter,
		logger:  logging.OrNop(s.logger).With(zap.String("topic", topic)),
	}
}

// Publish sends one message and waits for the server-assigned ID.
func (p *Publisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	res := p.pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := res.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

// PublishLines publishes every non-blank line of r as one message. Lines
// that are not JSON objects are skipped. Publishes are issued without
// waiting for each other; the first failure stops reading and is returned.
// The count is the number of messages the server acknowledged.
func (p *Publisher) PublishLines(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	g, gctx := errgroup.WithContext(ctx)
	var published atomic.Int64
	var stopErr error

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if _, err := tweet.Decode(line); err != nil {
			p.logger.Warn("Skipping line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		if err := p.limiter.Wait(gctx); err != nil {
			stopErr = fmt.Errorf("rate limiter error: %w", err)
			break
		}

		n := lineNo
		res := p.pub.Publish(gctx, &pubsub.Message{Data: bytes.Clone(line)})
		g.Go(func() error {
			if _, err := res.Get(gctx); err != nil {
				return fmt.Errorf("failed to publish line %d: %w", n, err)
			}
			published.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(published.Load()), err
	}
	if stopErr != nil {
		return int(published.Load()), stopErr
	}
	if err := scanner.Err(); err != nil {
		return int(published.Load()), fmt.Errorf("failed to read input: %w", err)
	}

	p.logger.Debug("Published lines", zap.Int64("messages", published.Load()))
	return int(published.Load()), nil
}

// Stop sends any buffered messages and stops the publisher.
func (p *Publisher) Stop() {
	p.pub.Stop()
}
