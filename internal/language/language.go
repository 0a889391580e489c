// Package language annotates text with document sentiment from the Cloud
// Natural Language API.
package language

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	nlapi "google.golang.org/api/language/v1"

	"github.com/NissesSenap/tweet-pipeline/internal/logging"
	"github.com/NissesSenap/tweet-pipeline/internal/retry"
)

// ErrNoSentiment is returned when the API answers without a document
// sentiment.
var ErrNoSentiment = errors.New("response has no document sentiment")

// Sentiment is the overall sentiment of a document.
type Sentiment struct {
	// Score ranges from -1.0 (negative) to 1.0 (positive).
	Score float64
	// Magnitude is the non-negative strength of emotion.
	Magnitude float64
}

// Analyzer calls documents:analyzeSentiment.
type Analyzer struct {
	svc     *nlapi.Service
	limiter *rate.Limiter
	retry   retry.Policy
	logger  *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLimiter throttles requests. Without it requests are not limited.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Analyzer) { a.limiter = l }
}

// WithRateLimit limits requests to rps per second, with bursts of twice
// that. Zero or less means unlimited.
func WithRateLimit(rps float64) Option {
	return func(a *Analyzer) {
		if rps <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps*2)))
	}
}

// WithRetry replaces the default retry policy.
func WithRetry(p retry.Policy) Option {
	return func(a *Analyzer) { a.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logging.OrNop(l) }
}

// NewAnalyzer returns an Analyzer using svc.
func NewAnalyzer(svc *nlapi.Service, opts ...Option) *Analyzer {
	a := &Analyzer{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Inf, 0),
		retry:   retry.Default,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the sentiment of text as a plain text document.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Sentiment, error) {
	req := &nlapi.AnalyzeSentimentRequest{
		Document: &nlapi.Document{
			Content: text,
			Type:    "PLAIN_TEXT",
		},
		EncodingType: "UTF8",
	}

	var resp *nlapi.AnalyzeSentimentResponse
	err := a.retry.Do(ctx, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		resp, err = a.svc.Documents.AnalyzeSentiment(req).Context(ctx).Do()
		if err != nil {
			a.logger.Debug("analyzeSentiment failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return Sentiment{}, fmt.Errorf("failed to analyze sentiment: %w", err)
	}
	if resp.DocumentSentiment == nil {
		return Sentiment{}, ErrNoSentiment
	}

	return Sentiment{
		Score:     resp.DocumentSentiment.Score,
		Magnitude: resp.DocumentSentiment.Magnitude,
	}, nil
}
