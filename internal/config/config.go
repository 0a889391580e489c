package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TWEET_PIPELINE"

type Config struct {
	ProjectID       string   `yaml:"project_id" envconfig:"PROJECT_ID"`
	CredentialsFile string   `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	PubSub          PubSub   `yaml:"pubsub"`
	BigQuery        BigQuery `yaml:"bigquery"`
	Filter          Filter   `yaml:"filter"`
	Streamer        Streamer `yaml:"streamer"`
	RateLimits      Limits   `yaml:"rate_limits"`
	Storage         Storage  `yaml:"storage"`
	Log             Log      `yaml:"log"`
}

type PubSub struct {
	Topic          string `yaml:"topic" envconfig:"PUBSUB_TOPIC"`
	Subscription   string `yaml:"subscription" envconfig:"PUBSUB_SUBSCRIPTION"`
	MaxOutstanding int    `yaml:"max_outstanding" envconfig:"PUBSUB_MAX_OUTSTANDING"`
}

type BigQuery struct {
	Dataset        string `yaml:"dataset" envconfig:"BIGQUERY_DATASET"`
	RawTable       string `yaml:"raw_table" envconfig:"BIGQUERY_RAW_TABLE"`
	SentimentTable string `yaml:"sentiment_table" envconfig:"BIGQUERY_SENTIMENT_TABLE"`
}

type Filter struct {
	Keyword   string `yaml:"keyword" envconfig:"FILTER_KEYWORD"`
	Language  string `yaml:"language" envconfig:"FILTER_LANGUAGE"`
	Sentiment bool   `yaml:"sentiment" envconfig:"FILTER_SENTIMENT"`
}

type Streamer struct {
	Workers  int           `yaml:"workers" envconfig:"STREAMER_WORKERS"`
	MaxRows  int           `yaml:"max_rows" envconfig:"STREAMER_MAX_ROWS"`
	MaxDelay time.Duration `yaml:"max_delay" envconfig:"STREAMER_MAX_DELAY"`
}

type Limits struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	MaxConcurrent     int     `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT"`
}

type Storage struct {
	Path string `yaml:"path" envconfig:"STORAGE_PATH"`
}

type Log struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Development bool   `yaml:"development" envconfig:"LOG_DEVELOPMENT"`
}

// ErrMissingSetting is wrapped by Validate errors.
var ErrMissingSetting = errors.New("missing required setting")

// ConfigPath returns the configuration file path
// Default: ~/.config/tweet-pipeline/config.yaml
func ConfigPath() string {
	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tweet-pipeline", "config.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load from YAML file if exists
	configPath := ConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	// Process nested structs with the same prefix to support flat env var names
	nested := []any{
		&cfg.PubSub,
		&cfg.BigQuery,
		&cfg.Filter,
		&cfg.Streamer,
		&cfg.RateLimits,
		&cfg.Storage,
		&cfg.Log,
	}
	for _, section := range nested {
		if err := envconfig.Process(envPrefix, section); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) Save() error {
	configPath := ConfigPath()

	// Create directory if not exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// ValidatePublish checks the settings the publish command needs.
func (c *Config) ValidatePublish() error {
	return required(
		setting{"project_id", c.ProjectID},
		setting{"pubsub.topic", c.PubSub.Topic},
	)
}

// ValidateProcess checks the settings the process command needs.
func (c *Config) ValidateProcess() error {
	if err := required(
		setting{"project_id", c.ProjectID},
		setting{"pubsub.subscription", c.PubSub.Subscription},
		setting{"bigquery.dataset", c.BigQuery.Dataset},
		setting{"bigquery.raw_table", c.BigQuery.RawTable},
	); err != nil {
		return err
	}

	if c.Filter.Sentiment && c.BigQuery.SentimentTable == "" {
		return fmt.Errorf("%w: bigquery.sentiment_table (filter.sentiment is enabled)", ErrMissingSetting)
	}
	if c.Streamer.Workers <= 0 || c.Streamer.MaxRows <= 0 || c.Streamer.MaxDelay <= 0 {
		return fmt.Errorf("streamer workers, max_rows and max_delay must be positive")
	}
	return nil
}

type setting struct {
	name  string
	value string
}

func required(settings ...setting) error {
	var errs []error
	for _, s := range settings {
		if s.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, s.name))
		}
	}
	return errors.Join(errs...)
}
