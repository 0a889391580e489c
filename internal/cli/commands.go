package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/NissesSenap/tweet-pipeline/internal/auth"
	"github.com/NissesSenap/tweet-pipeline/internal/config"
	"github.com/NissesSenap/tweet-pipeline/internal/flatten"
	"github.com/NissesSenap/tweet-pipeline/internal/language"
	"github.com/NissesSenap/tweet-pipeline/internal/pipeline"
	"github.com/NissesSenap/tweet-pipeline/internal/publisher"
	"github.com/NissesSenap/tweet-pipeline/internal/storage"
	"github.com/NissesSenap/tweet-pipeline/internal/streamer"
	"github.com/NissesSenap/tweet-pipeline/internal/tweet"
)

type PublishCmd struct {
	Files []string `arg:"" optional:"" help:"JSON-lines files to publish; - or none reads stdin"`
	Topic string   `help:"Topic ID or full name, overrides pubsub.topic"`
}

type ProcessCmd struct {
	Subscription string `help:"Subscription ID or full name, overrides pubsub.subscription"`
	NoSentiment  bool   `help:"Skip sentiment annotation"`
}

type FlattenCmd struct {
	File string `arg:"" optional:"" help:"JSON file; - or none reads stdin"`
}

type StatsCmd struct {
	Projects []string `help:"Filter by projects" placeholder:"PROJECT_ID"`
}

type RejectedCmd struct {
	Table string `required:"" help:"Table as [project:]dataset.table"`
	Limit int    `help:"Maximum rows to show, 0 for all" default:"20"`
}

type ConfigCmd struct {
	Save bool `help:"Write the effective configuration to the config file"`
}

type VersionCmd struct{}

func (c *PublishCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if c.Topic != "" {
		cfg.PubSub.Topic = c.Topic
	}
	if err := cfg.ValidatePublish(); err != nil {
		return err
	}

	ctx := cli.Context()
	creds, err := auth.Credentials(ctx, cfg.CredentialsFile, auth.PubSubScope)
	if err != nil {
		return err
	}

	clients := auth.NewClients(func(ctx context.Context, projectID string) (*pubsub.Client, error) {
		return auth.NewPubSubClient(ctx, projectID, creds)
	})
	defer func() { _ = clients.Close() }()

	client, err := clients.Get(ctx, projectFor(cfg.PubSub.Topic, "topics", cfg.ProjectID))
	if err != nil {
		return err
	}

	pub := publisher.New(client, cfg.PubSub.Topic,
		publisher.WithRateLimit(cfg.RateLimits.RequestsPerSecond),
		publisher.WithLogger(logger),
	)
	defer pub.Stop()

	files := c.Files
	if len(files) == 0 {
		files = []string{publisher.Stdin}
	}

	pool := publisher.NewFilePool(files, cfg.RateLimits.MaxConcurrent, logger)
	n, err := pool.PublishAll(ctx, pub)
	fmt.Fprintf(cli.Stdout(), "Published %d messages to %s\n", n, cfg.PubSub.Topic)
	if err != nil {
		for file, fileErr := range pool.Errors() {
			fmt.Fprintf(cli.Stdout(), "  %s: %v\n", file, fileErr)
		}
	}
	return err
}

func (c *ProcessCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if c.Subscription != "" {
		cfg.PubSub.Subscription = c.Subscription
	}
	if c.NoSentiment {
		cfg.Filter.Sentiment = false
	}
	if err := cfg.ValidateProcess(); err != nil {
		return err
	}

	ctx := cli.Context()
	creds, err := auth.Credentials(ctx, cfg.CredentialsFile,
		auth.PubSubScope, auth.BigQueryScope, auth.LanguageScope)
	if err != nil {
		return err
	}

	clients := auth.NewClients(func(ctx context.Context, projectID string) (*pubsub.Client, error) {
		return auth.NewPubSubClient(ctx, projectID, creds)
	})
	defer func() { _ = clients.Close() }()

	client, err := clients.Get(ctx, projectFor(cfg.PubSub.Subscription, "subscriptions", cfg.ProjectID))
	if err != nil {
		return err
	}

	httpClient := auth.HTTPClient(ctx, creds)
	bq, err := auth.NewBigQueryService(ctx, nil, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create bigquery service: %w", err)
	}

	store, err := openStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := streamer.New(bq, store,
		streamer.WithWorkers(cfg.Streamer.Workers),
		streamer.WithMaxRows(cfg.Streamer.MaxRows),
		streamer.WithMaxDelay(cfg.Streamer.MaxDelay),
		streamer.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	s.Start()
	defer s.Stop()

	pcfg := pipeline.Config{
		ProjectID: cfg.ProjectID,
		Dataset:   cfg.BigQuery.Dataset,
		RawTable:  cfg.BigQuery.RawTable,
		Filter:    tweet.Filter{Keyword: cfg.Filter.Keyword, Language: cfg.Filter.Language},
	}
	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	if cfg.Filter.Sentiment {
		nl, err := auth.NewLanguageService(ctx, nil, option.WithHTTPClient(httpClient))
		if err != nil {
			return fmt.Errorf("failed to create language service: %w", err)
		}
		analyzer := language.NewAnalyzer(nl,
			language.WithRateLimit(cfg.RateLimits.RequestsPerSecond),
			language.WithLogger(logger),
		)
		pcfg.SentimentTable = cfg.BigQuery.SentimentTable
		opts = append(opts, pipeline.WithAnnotator(analyzer))
	}

	p := pipeline.New(s, pcfg, opts...)

	_, subID := auth.SplitResource(cfg.PubSub.Subscription, "subscriptions")
	sub := client.Subscriber(subID)
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.PubSub.MaxOutstanding

	logger.Info("Processing tweets",
		zap.String("subscription", cfg.PubSub.Subscription),
		zap.String("dataset", cfg.BigQuery.Dataset),
		zap.Bool("sentiment", cfg.Filter.Sentiment))

	start := time.Now()
	err = p.Run(ctx, sub)
	s.Stop()

	stats := p.Stats()
	logger.Info("Stopped processing",
		zap.Duration("uptime", time.Since(start)),
		zap.Int64("processed", stats.Processed),
		zap.Int64("malformed", stats.Malformed),
		zap.Int64("annotated", stats.Annotated),
		zap.Int64("annotation_failed", stats.AnnotationFailed))
	return err
}

// projectFor returns the project of a full resource name, or fallback for
// a bare ID.
func projectFor(name, kind, fallback string) string {
	if project, _ := auth.SplitResource(name, kind); project != "" {
		return project
	}
	return fallback
}

func (c *FlattenCmd) Run(cli *CLI) error {
	in := cli.Stdin()
	if c.File != "" && c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	dec := json.NewDecoder(in)
	dec.UseNumber()
	enc := json.NewEncoder(cli.Stdout())
	enc.SetEscapeHTML(false)

	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode JSON: %w", err)
		}
		for leaf := range flatten.Values(doc) {
			if err := enc.Encode(leaf); err != nil {
				return err
			}
		}
	}
}

func (c *StatsCmd) Run(cli *CLI) error {
	cfg, _, err := cli.setup()
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cli.Context()
	projects := c.Projects
	if len(projects) == 0 {
		projects, err = store.GetAllProjects(ctx)
		if err != nil {
			return err
		}
	}
	if len(projects) == 0 {
		fmt.Fprintln(cli.Stdout(), "No tables recorded yet")
		return nil
	}

	stats, err := store.GetTableStats(ctx, projects)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.Stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tINSERTED\tREJECTED\tLAST INSERT")
	for _, st := range stats {
		last := "-"
		if !st.LastInsert.IsZero() {
			last = st.LastInsert.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", st.Name(), st.RowsInserted, st.RowsRejected, last)
	}
	return w.Flush()
}

func (c *RejectedCmd) Run(cli *CLI) error {
	cfg, _, err := cli.setup()
	if err != nil {
		return err
	}

	ref, err := storage.ParseTableRef(c.Table, cfg.ProjectID)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.GetRejectedRows(cli.Context(), ref, c.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(cli.Stdout(), "No rejected rows for %s\n", ref.Name())
		return nil
	}

	for _, r := range rows {
		fmt.Fprintf(cli.Stdout(), "%s  %s  %s: %s\n", r.CreatedAt.UTC().Format(time.RFC3339), r.InsertID, r.Reason, r.Message)
		if r.Payload != "" {
			fmt.Fprintf(cli.Stdout(), "  %s\n", r.Payload)
		}
	}
	return nil
}

func (c *ConfigCmd) Run(cli *CLI) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if c.Save {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cli.Stdout(), "Saved configuration to %s\n", config.ConfigPath())
		return nil
	}

	enc := yaml.NewEncoder(cli.Stdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Fprintf(cli.Stdout(), "tweet-pipeline version: %s\n", Version)
	return nil
}

func openStore(path string) (*storage.SQLiteStorage, error) {
	if path == "" {
		return storage.NewDefaultSQLite()
	}
	return storage.NewSQLite(path)
}
