package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if err := c.Database.Warehouse.validate("database.warehouse"); err != nil {
		return err
	}
	if c.Database.RawSchema == c.Database.AnalyticsSchema {
		return errors.New("database.raw_schema and database.analytics_schema must differ")
	}

	if c.Loader.Concurrency < 1 {
		return errors.New("loader.concurrency must be >= 1")
	}

	switch c.Transform.ContractScope {
	case "all_snapshots", "market_snapshot":
	default:
		return fmt.Errorf("transform.contract_scope must be all_snapshots or market_snapshot, got %q", c.Transform.ContractScope)
	}
	if c.Transform.StaleAfter < 0 {
		return errors.New("transform.stale_after must be >= 0")
	}
	if _, err := time.LoadLocation(c.Transform.MetricTimezone); err != nil {
		return fmt.Errorf("transform.metric_timezone: %w", err)
	}

	if c.Schedule.Interval < 0 {
		return errors.New("schedule.interval must be >= 0")
	}
	if c.Schedule.HealthPort < 1 || c.Schedule.HealthPort > 65535 {
		return fmt.Errorf("schedule.health_port must be between 1 and 65535, got %d", c.Schedule.HealthPort)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Backend {
	case "s3":
		if s.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 backend")
		}
		if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
		}
	case "file":
		if s.LocalDir == "" {
			return errors.New("storage.local_dir is required for the file backend")
		}
	default:
		return fmt.Errorf("storage.backend must be s3 or file, got %q", s.Backend)
	}

	switch s.Compression {
	case "none", "zstd":
	default:
		return fmt.Errorf("storage.compression must be none or zstd, got %q", s.Compression)
	}
	if s.Prefix == "" {
		return errors.New("storage.prefix is required")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
