// Package pipeline moves tweets from a Pub/Sub subscription into BigQuery
// rows: every tweet to the raw table, and tweets matching the filter,
// annotated with their sentiment, to the sentiment table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"
	"google.golang.org/api/bigquery/v2"

	"github.com/NissesSenap/tweet-pipeline/internal/language"
	"github.com/NissesSenap/tweet-pipeline/internal/logging"
	"github.com/NissesSenap/tweet-pipeline/internal/streamer"
	"github.com/NissesSenap/tweet-pipeline/internal/tweet"
)

// ErrMalformed marks messages that can never be processed. They are acked
// so Pub/Sub does not redeliver them.
var ErrMalformed = errors.New("malformed tweet")

// Sink receives rows, normally a *streamer.Streamer.
type Sink interface {
	QueueRow(ctx context.Context, row streamer.Row) error
}

// Annotator scores the sentiment of a text, normally a *language.Analyzer.
type Annotator interface {
	Analyze(ctx context.Context, text string) (language.Sentiment, error)
}

// Config names the destination tables.
type Config struct {
	ProjectID string
	Dataset   string
	RawTable  string
	// SentimentTable receives annotated tweets. Empty disables annotation.
	SentimentTable string
	Filter         tweet.Filter
}

// Stats counts what Handle did since the pipeline was created.
type Stats struct {
	Processed        int64
	Malformed        int64
	Annotated        int64
	AnnotationFailed int64
}

// Pipeline handles tweet messages.
type Pipeline struct {
	sink      Sink
	annotator Annotator
	cfg       Config
	cleaner   *tweet.Cleaner
	logger    *zap.Logger

	processed        atomic.Int64
	malformed        atomic.Int64
	annotated        atomic.Int64
	annotationFailed atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAnnotator enables sentiment annotation.
func WithAnnotator(a Annotator) Option {
	return func(p *Pipeline) { p.annotator = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// New returns a Pipeline writing rows to sink.
func New(sink Sink, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:   sink,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cleaner = tweet.NewCleaner(p.logger)
	return p
}

// Handle processes one message body.
//
// Undecodable bodies return an error wrapping ErrMalformed. The raw row is
// always queued first; a failed annotation is logged and only the
// annotated row is skipped.
func (p *Pipeline) Handle(ctx context.Context, data []byte) error {
	payload, err := tweet.Decode(data)
	if err != nil {
		p.malformed.Add(1)
		p.logger.Warn("Dropping malformed message", zap.Int("bytes", len(data)), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	payload = p.cleaner.Cleanup(payload)
	if err := p.sink.QueueRow(ctx, p.row(p.cfg.RawTable, payload)); err != nil {
		return fmt.Errorf("failed to queue raw row: %w", err)
	}
	p.processed.Add(1)

	if p.annotator == nil || p.cfg.SentimentTable == "" || !p.cfg.Filter.Match(payload) {
		return nil
	}

	sentiment, err := p.annotator.Analyze(ctx, tweet.Text(payload))
	if err != nil {
		p.annotationFailed.Add(1)
		p.logger.Warn("Skipping sentiment", zap.String("id_str", tweet.ID(payload)), zap.Error(err))
		return nil
	}

	annotated := maps.Clone(payload)
	annotated["polarity"] = sentiment.Score
	annotated["magnitude"] = sentiment.Magnitude
	if err := p.sink.QueueRow(ctx, p.row(p.cfg.SentimentTable, annotated)); err != nil {
		return fmt.Errorf("failed to queue sentiment row: %w", err)
	}
	p.annotated.Add(1)
	return nil
}

func (p *Pipeline) row(table string, payload tweet.Payload) streamer.Row {
	data := make(map[string]bigquery.JsonValue, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	return streamer.Row{
		ProjectID: p.cfg.ProjectID,
		DatasetID: p.cfg.Dataset,
		TableID:   table,
		Data:      data,
	}
}

// Run receives messages from sub until ctx is cancelled. Handled and
// malformed messages are acked; messages the sink refused are nacked for
// redelivery.
func (p *Pipeline) Run(ctx context.Context, sub *pubsub.Subscriber) error {
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		err := p.Handle(ctx, m.Data)
		switch {
		case err == nil, errors.Is(err, ErrMalformed):
			m.Ack()
		default:
			p.logger.Error("Failed to handle message", zap.String("message_id", m.ID), zap.Error(err))
			m.Nack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive failed: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:        p.processed.Load(),
		Malformed:        p.malformed.Load(),
		Annotated:        p.annotated.Load(),
		AnnotationFailed: p.annotationFailed.Load(),
	}
}
