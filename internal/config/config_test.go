package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "blackfridaytweets", cfg.PubSub.Topic)
	assert.Equal(t, "black_friday_analytics", cfg.BigQuery.Dataset)
	assert.Equal(t, "tweets_raw", cfg.BigQuery.RawTable)
	assert.Equal(t, "tweets_sentiment", cfg.BigQuery.SentimentTable)
	assert.Equal(t, "blackfriday", cfg.Filter.Keyword)
	assert.Equal(t, "en", cfg.Filter.Language)
	assert.True(t, cfg.Filter.Sentiment)
	assert.Equal(t, 3, cfg.Streamer.Workers)
	assert.Equal(t, 500, cfg.Streamer.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.Streamer.MaxDelay)
	assert.Equal(t, 10.0, cfg.RateLimits.RequestsPerSecond)
	assert.Equal(t, 5, cfg.RateLimits.MaxConcurrent)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TWEET_PIPELINE_CONFIG", filepath.Join(t.TempDir(), "nonexistent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tweets_raw", cfg.BigQuery.RawTable)
	assert.Equal(t, 10.0, cfg.RateLimits.RequestsPerSecond)
}

func TestLoadConfig_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	yamlContent := `
project_id: "test-project"
credentials_file: "/secrets/key.json"
pubsub:
  topic: "tweets"
  subscription: "tweets-bq"
  max_outstanding: 50
bigquery:
  dataset: "analytics"
  raw_table: "raw"
  sentiment_table: "scored"
filter:
  keyword: "cybermonday"
  language: "it"
  sentiment: false
streamer:
  workers: 2
  max_rows: 100
  max_delay: 10s
rate_limits:
  requests_per_second: 5.0
  max_concurrent: 3
storage:
  path: "/var/lib/tweet-pipeline/state.db"
log:
  level: "debug"
  development: true
`

	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-project", cfg.ProjectID)
	assert.Equal(t, "/secrets/key.json", cfg.CredentialsFile)
	assert.Equal(t, "tweets", cfg.PubSub.Topic)
	assert.Equal(t, "tweets-bq", cfg.PubSub.Subscription)
	assert.Equal(t, 50, cfg.PubSub.MaxOutstanding)
	assert.Equal(t, "analytics", cfg.BigQuery.Dataset)
	assert.Equal(t, "raw", cfg.BigQuery.RawTable)
	assert.Equal(t, "scored", cfg.BigQuery.SentimentTable)
	assert.Equal(t, "cybermonday", cfg.Filter.Keyword)
	assert.Equal(t, "it", cfg.Filter.Language)
	assert.False(t, cfg.Filter.Sentiment)
	assert.Equal(t, 2, cfg.Streamer.Workers)
	assert.Equal(t, 100, cfg.Streamer.MaxRows)
	assert.Equal(t, 10*time.Second, cfg.Streamer.MaxDelay)
	assert.Equal(t, 5.0, cfg.RateLimits.RequestsPerSecond)
	assert.Equal(t, 3, cfg.RateLimits.MaxConcurrent)
	assert.Equal(t, "/var/lib/tweet-pipeline/state.db", cfg.Storage.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	yamlContent := `
project_id: "yaml-project"
pubsub:
  topic: "yaml-topic"
rate_limits:
  requests_per_second: 10.0
`

	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)
	t.Setenv("TWEET_PIPELINE_PROJECT_ID", "env-project")
	t.Setenv("TWEET_PIPELINE_REQUESTS_PER_SECOND", "20.0")
	t.Setenv("TWEET_PIPELINE_STREAMER_MAX_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	// Environment variable should override YAML
	assert.Equal(t, "env-project", cfg.ProjectID)
	assert.Equal(t, 20.0, cfg.RateLimits.RequestsPerSecond)
	assert.Equal(t, 250*time.Millisecond, cfg.Streamer.MaxDelay)

	// Values not overridden by env should come from YAML
	assert.Equal(t, "yaml-topic", cfg.PubSub.Topic)
}

func TestConfigPrecedence(t *testing.T) {
	// defaults < YAML < env vars
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	yamlContent := `
streamer:
  max_rows: 50
filter:
  keyword: "yaml-keyword"
`

	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)
	t.Setenv("TWEET_PIPELINE_FILTER_KEYWORD", "env-keyword")

	cfg, err := Load()
	require.NoError(t, err)

	// Default value (not in YAML or env)
	assert.Equal(t, 10.0, cfg.RateLimits.RequestsPerSecond)

	// YAML value (not overridden by env)
	assert.Equal(t, 50, cfg.Streamer.MaxRows)

	// Env value (overrides YAML)
	assert.Equal(t, "env-keyword", cfg.Filter.Keyword)
}

func TestConfigPath_Default(t *testing.T) {
	t.Setenv("TWEET_PIPELINE_CONFIG", "")

	path := ConfigPath()

	assert.Contains(t, path, ".config/tweet-pipeline/config.yaml")
}

func TestConfigPath_CustomEnv(t *testing.T) {
	customPath := "/custom/path/config.yaml"
	t.Setenv("TWEET_PIPELINE_CONFIG", customPath)

	assert.Equal(t, customPath, ConfigPath())
}

func TestConfigSave(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)

	cfg := DefaultConfig()
	cfg.ProjectID = "save-test-project"
	cfg.PubSub.Topic = "saved-topic"
	cfg.Streamer.MaxDelay = 30 * time.Second

	err := cfg.Save()
	require.NoError(t, err)

	_, err = os.Stat(configPath)
	require.NoError(t, err)

	loadedCfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "save-test-project", loadedCfg.ProjectID)
	assert.Equal(t, "saved-topic", loadedCfg.PubSub.Topic)
	assert.Equal(t, 30*time.Second, loadedCfg.Streamer.MaxDelay)
	assert.Equal(t, "tweets_raw", loadedCfg.BigQuery.RawTable)
}

func TestConfigSave_CreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nested", "dir", "config.yaml")

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)

	cfg := DefaultConfig()
	err := cfg.Save()
	require.NoError(t, err)

	_, err = os.Stat(filepath.Dir(configPath))
	require.NoError(t, err)

	_, err = os.Stat(configPath)
	require.NoError(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.yaml")

	invalidYAML := `
this is not: valid: yaml: content
  bad indentation
`

	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	t.Setenv("TWEET_PIPELINE_CONFIG", configPath)

	_, err = Load()
	require.Error(t, err)
}

func TestValidatePublish(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.ValidatePublish()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "project_id")

	cfg.ProjectID = "p"
	assert.NoError(t, cfg.ValidatePublish())

	cfg.PubSub.Topic = ""
	err = cfg.ValidatePublish()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "pubsub.topic")
}

func TestValidateProcess(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with project",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing subscription",
			mutate:  func(c *Config) { c.PubSub.Subscription = "" },
			wantErr: "pubsub.subscription",
		},
		{
			name:    "missing raw table",
			mutate:  func(c *Config) { c.BigQuery.RawTable = "" },
			wantErr: "bigquery.raw_table",
		},
		{
			name:    "sentiment without table",
			mutate:  func(c *Config) { c.BigQuery.SentimentTable = "" },
			wantErr: "bigquery.sentiment_table",
		},
		{
			name: "no sentiment table needed when disabled",
			mutate: func(c *Config) {
				c.BigQuery.SentimentTable = ""
				c.Filter.Sentiment = false
			},
		},
		{
			name:    "non-positive streamer settings",
			mutate:  func(c *Config) { c.Streamer.MaxRows = 0 },
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProjectID = "p"
			tt.mutate(cfg)

			err := cfg.ValidateProcess()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
