package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultJobName         = "predictit-etl"
	DefaultBaseURL         = "https://www.predictit.org/api/marketdata/all/"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 1 * time.Second
	DefaultStorageBackend  = "s3"
	DefaultRegion          = "us-east-1"
	DefaultLocalDir        = "data"
	DefaultPrefix          = "predictit/raw"
	DefaultFilePrefix      = "predictit_markets"
	DefaultCompression     = "none"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultRawSchema       = "raw_data"
	DefaultAnalyticsSchema = "analytics"
	DefaultLoadConcurrency = 4
	DefaultContractScope   = "all_snapshots"
	DefaultMetricTimezone  = "UTC"
	DefaultHealthPort      = 8080
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Job.Name == "" {
		c.Job.Name = DefaultJobName
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = DefaultLocalDir
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = DefaultPrefix
	}
	if c.Storage.FilePrefix == "" {
		c.Storage.FilePrefix = DefaultFilePrefix
	}
	if c.Storage.Compression == "" {
		c.Storage.Compression = DefaultCompression
	}

	// Database defaults
	applyDBDefaults(&c.Database.Warehouse)
	if c.Database.RawSchema == "" {
		c.Database.RawSchema = DefaultRawSchema
	}
	if c.Database.AnalyticsSchema == "" {
		c.Database.AnalyticsSchema = DefaultAnalyticsSchema
	}

	if c.Loader.Concurrency == 0 {
		c.Loader.Concurrency = DefaultLoadConcurrency
	}

	// Transform defaults
	if c.Transform.ContractScope == "" {
		c.Transform.ContractScope = DefaultContractScope
	}
	if c.Transform.MetricTimezone == "" {
		c.Transform.MetricTimezone = DefaultMetricTimezone
	}

	if c.Schedule.HealthPort == 0 {
		c.Schedule.HealthPort = DefaultHealthPort
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
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
