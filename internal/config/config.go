package config

import "time"

// TrackerConfig is the root configuration for the tracker.
type TrackerConfig struct {
	Product ProductConfig `yaml:"product"`
	Poller  PollerConfig  `yaml:"poller"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// ProductConfig names the product to track. URL may be empty, in which
// case the interactive surface prompts for it.
type ProductConfig struct {
	URL string `yaml:"url"`
}

// PollerConfig holds scrape-loop settings.
type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`
}

// ScrapeConfig holds page-fetching settings.
type ScrapeConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StoreConfig holds the durable log location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ArchiveConfig holds the optional Postgres mirror settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Postgres      DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
