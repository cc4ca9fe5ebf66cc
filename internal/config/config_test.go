package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
job:
  name: test-etl
api:
  base_url: https://example.com/api/marketdata/all/
storage:
  backend: s3
  bucket: test-bucket
  prefix: predictit/raw
database:
  warehouse:
    host: localhost
    port: 5432
    name: etl_db
    user: testuser
    password: testpass
transform:
  stale_after: 48h
  prune_raw: false
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Job.Name != "test-etl" {
		t.Errorf("Job.Name = %q, want %q", cfg.Job.Name, "test-etl")
	}
	if cfg.API.BaseURL != "https://example.com/api/marketdata/all/" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Storage.Bucket != "test-bucket" {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, "test-bucket")
	}
	if cfg.Database.Warehouse.Host != "localhost" {
		t.Errorf("Database.Warehouse.Host = %q, want %q", cfg.Database.Warehouse.Host, "localhost")
	}
	if cfg.Transform.StaleAfter != 48*time.Hour {
		t.Errorf("Transform.StaleAfter = %v, want %v", cfg.Transform.StaleAfter, 48*time.Hour)
	}
	if cfg.Transform.ShouldPruneRaw() {
		t.Error("ShouldPruneRaw() = true, want false when prune_raw is false")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_AWS_SECRET", "aws-secret")

	yaml := `
storage:
  bucket: b
  access_key_id: AKIATEST
  secret_access_key: ${TEST_AWS_SECRET}
database:
  warehouse:
    host: localhost
    name: etl_db
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Warehouse.Password != "secret123" {
		t.Errorf("Database.Warehouse.Password = %q, want %q", cfg.Database.Warehouse.Password, "secret123")
	}
	if cfg.Storage.SecretAccessKey != "aws-secret" {
		t.Errorf("Storage.SecretAccessKey = %q, want %q", cfg.Storage.SecretAccessKey, "aws-secret")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
storage:
  bucket: b
database:
  warehouse:
    host: localhost
    name: etl_db
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Storage.Prefix != DefaultPrefix {
		t.Errorf("Storage.Prefix = %q, want default %q", cfg.Storage.Prefix, DefaultPrefix)
	}
	if cfg.Storage.Compression != DefaultCompression {
		t.Errorf("Storage.Compression = %q, want default %q", cfg.Storage.Compression, DefaultCompression)
	}
	if cfg.Database.Warehouse.Port != DefaultDBPort {
		t.Errorf("Database.Warehouse.Port = %d, want default %d", cfg.Database.Warehouse.Port, DefaultDBPort)
	}
	if cfg.Database.RawSchema != DefaultRawSchema {
		t.Errorf("Database.RawSchema = %q, want default %q", cfg.Database.RawSchema, DefaultRawSchema)
	}
	if cfg.Transform.ContractScope != DefaultContractScope {
		t.Errorf("Transform.ContractScope = %q, want default %q", cfg.Transform.ContractScope, DefaultContractScope)
	}
	if !cfg.Transform.ShouldPruneRaw() {
		t.Error("ShouldPruneRaw() = false, want true by default")
	}
	if cfg.Schedule.Interval != 0 {
		t.Errorf("Schedule.Interval = %v, want 0", cfg.Schedule.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaulted config: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			API: APIConfig{BaseURL: DefaultBaseURL, MaxRetries: 3},
			Storage: StorageConfig{
				Backend:     "s3",
				Bucket:      "bucket",
				Prefix:      "predictit/raw",
				Compression: "none",
			},
			Database: DatabaseConfig{
				Warehouse:       DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 4, MinConns: 1},
				RawSchema:       "raw_data",
				AnalyticsSchema: "analytics",
			},
			Loader:    LoaderConfig{Concurrency: 4},
			Transform: TransformConfig{ContractScope: "all_snapshots", MetricTimezone: "UTC"},
			Schedule:  ScheduleConfig{HealthPort: 8080},
			Logging:   LoggingConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing bucket",
			mutate:  func(c *Config) { c.Storage.Bucket = "" },
			wantErr: "storage.bucket is required for the s3 backend",
		},
		{
			name:    "file backend without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = "file"; c.Storage.Bucket = ""; c.Storage.LocalDir = "data" },
			wantErr: "",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "gcs" },
			wantErr: `storage.backend must be s3 or file, got "gcs"`,
		},
		{
			name:    "half credentials",
			mutate:  func(c *Config) { c.Storage.AccessKeyID = "AKIA" },
			wantErr: "storage.access_key_id and storage.secret_access_key must be set together",
		},
		{
			name:    "bad compression",
			mutate:  func(c *Config) { c.Storage.Compression = "gzip" },
			wantErr: `storage.compression must be none or zstd, got "gzip"`,
		},
		{
			name:    "missing warehouse password",
			mutate:  func(c *Config) { c.Database.Warehouse.Password = "" },
			wantErr: "database.warehouse.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *Config) { c.Database.Warehouse.MinConns = 10; c.Database.Warehouse.MaxConns = 5 },
			wantErr: "database.warehouse.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "same schemas",
			mutate:  func(c *Config) { c.Database.AnalyticsSchema = "raw_data" },
			wantErr: "database.raw_schema and database.analytics_schema must differ",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Loader.Concurrency = 0 },
			wantErr: "loader.concurrency must be >= 1",
		},
		{
			name:    "bad contract scope",
			mutate:  func(c *Config) { c.Transform.ContractScope = "latest" },
			wantErr: `transform.contract_scope must be all_snapshots or market_snapshot, got "latest"`,
		},
		{
			name:    "negative stale_after",
			mutate:  func(c *Config) { c.Transform.StaleAfter = -time.Hour },
			wantErr: "transform.stale_after must be >= 0",
		},
		{
			name:    "bad health port",
			mutate:  func(c *Config) { c.Schedule.HealthPort = 70000 },
			wantErr: "schedule.health_port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be debug, info, warn or error, got "trace"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
