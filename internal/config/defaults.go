package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPollInterval  = 60 * time.Second
	DefaultScrapeTimeout = 15 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 1 * time.Second
	DefaultStorePath     = "price_data.ndjson"
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
	DefaultBufferSize    = 1000
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultLogLevel      = "info"
)

func (c *TrackerConfig) applyDefaults() {
	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.ScrapeTimeout == 0 {
		c.Poller.ScrapeTimeout = DefaultScrapeTimeout
	}

	// Scrape defaults
	if c.Scrape.MaxRetries == 0 {
		c.Scrape.MaxRetries = DefaultMaxRetries
	}
	if c.Scrape.RetryBackoff == 0 {
		c.Scrape.RetryBackoff = DefaultRetryBackoff
	}

	// Store defaults
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Archive.Postgres)

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
