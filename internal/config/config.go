package config

import "time"

// Config is the root configuration for the ETL job.
type Config struct {
	Job       JobConfig       `yaml:"job"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Loader    LoaderConfig    `yaml:"loader"`
	Transform TransformConfig `yaml:"transform"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// JobConfig identifies this job instance in logs.
type JobConfig struct {
	Name string `yaml:"name"`
}

// APIConfig holds the market-data feed settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"` // Optional bearer token
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StorageConfig holds the object storage landing zone.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // "s3" or "file"
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // Custom S3 endpoint (MinIO, R2)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CreateBucket    bool   `yaml:"create_bucket"`
	LocalDir        string `yaml:"local_dir"` // Root directory for the file backend
	Prefix          string `yaml:"prefix"`
	FilePrefix      string `yaml:"file_prefix"`
	Compression     string `yaml:"compression"` // "none" or "zstd"
}

// DatabaseConfig holds the warehouse connection and schema names.
type DatabaseConfig struct {
	Warehouse       DBConfig `yaml:"warehouse"`
	RawSchema       string   `yaml:"raw_schema"`
	AnalyticsSchema string   `yaml:"analytics_schema"`
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

// LoaderConfig holds raw loader settings.
type LoaderConfig struct {
	Concurrency int `yaml:"concurrency"` // Concurrent object downloads
}

// TransformConfig holds projection and aggregation settings.
type TransformConfig struct {
	ContractScope  string        `yaml:"contract_scope"`  // "all_snapshots" or "market_snapshot"
	StaleAfter     time.Duration `yaml:"stale_after"`     // 0 disables the stale-market rule
	MetricTimezone string        `yaml:"metric_timezone"` // IANA zone for metric_date
	PruneRaw       *bool         `yaml:"prune_raw"`
}

// ScheduleConfig holds daemon-mode settings.
type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval"` // 0 runs once and exits
	HealthPort int           `yaml:"health_port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ShouldPruneRaw reports whether raw history is pruned after each transform.
func (t TransformConfig) ShouldPruneRaw() bool {
	return t.PruneRaw == nil || *t.PruneRaw
}
