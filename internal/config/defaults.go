package config

import "time"

func DefaultConfig() *Config {
	return &Config{
		PubSub: PubSub{
			Topic:          "blackfridaytweets",
			Subscription:   "blackfridaytweets",
			MaxOutstanding: 1000,
		},
		BigQuery: BigQuery{
			Dataset:        "black_friday_analytics",
			RawTable:       "tweets_raw",
			SentimentTable: "tweets_sentiment",
		},
		Filter: Filter{
			Keyword:   "blackfriday",
			Language:  "en",
			Sentiment: true,
		},
		Streamer: Streamer{
			Workers:  3,
			MaxRows:  500,
			MaxDelay: 5 * time.Second,
		},
		RateLimits: Limits{
			RequestsPerSecond: 10,
			MaxConcurrent:     5,
		},
		Storage: Storage{
			Path: "/tmp/tweet-pipeline/state.db",
		},
		Log: Log{
			Level: "info",
		},
	}
}
