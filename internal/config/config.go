package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/reqtrace/internal/export"
	"github.com/alfredjeanlab/reqtrace/internal/idgen"
)

// ErrDatabaseURLRequired is returned by RequireDatabase when no URL is configured.
var ErrDatabaseURLRequired = errors.New("REQTRACE_DATABASE_URL is required")

type Config struct {
	DatabaseURL string     // REQTRACE_DATABASE_URL (required for store-backed commands)
	NATSURL     string     // REQTRACE_NATS_URL (optional, empty = no events)
	LogLevel    slog.Level // REQTRACE_LOG_LEVEL (default "info")

	// Export settings
	ExportInterval   time.Duration // REQTRACE_EXPORT_INTERVAL (default 0 = one-shot)
	ExportS3Bucket   string        // REQTRACE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // REQTRACE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // REQTRACE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // REQTRACE_EXPORT_S3_KEY (default "reqtrace/matrix.jsonl")

	// Identifier allocation
	IDPrefixLength  int // REQTRACE_ID_PREFIX_LENGTH (default 4)
	IDSequenceWidth int // REQTRACE_ID_SEQUENCE_WIDTH (default 3)
	IDProbeAttempts int // REQTRACE_ID_PROBE_ATTEMPTS (default 3)
}

// fileConfig is the shape of the optional TOML file named by REQTRACE_CONFIG.
type fileConfig struct {
	DatabaseURL string `toml:"database_url"`
	NATSURL     string `toml:"nats_url"`
	LogLevel    string `toml:"log_level"`
	Export      struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
	} `toml:"export"`
	IDs struct {
		PrefixLength  int `toml:"prefix_length"`
		SequenceWidth int `toml:"sequence_width"`
		ProbeAttempts int `toml:"probe_attempts"`
	} `toml:"ids"`
}

// Load builds the configuration. Values from the REQTRACE_CONFIG file act
// as defaults; environment variables override them.
func Load() (*Config, error) {
	var fc fileConfig
	if path := os.Getenv("REQTRACE_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL:      envOrDefault("REQTRACE_DATABASE_URL", fc.DatabaseURL),
		NATSURL:          envOrDefault("REQTRACE_NATS_URL", fc.NATSURL),
		ExportS3Bucket:   envOrDefault("REQTRACE_EXPORT_S3_BUCKET", fc.Export.S3Bucket),
		ExportS3Endpoint: envOrDefault("REQTRACE_EXPORT_S3_ENDPOINT", fc.Export.S3Endpoint),
		ExportS3Region:   envOrDefault("REQTRACE_EXPORT_S3_REGION", orDefault(fc.Export.S3Region, "us-east-1")),
		ExportS3Key:      envOrDefault("REQTRACE_EXPORT_S3_KEY", orDefault(fc.Export.S3Key, "reqtrace/matrix.jsonl")),
	}

	level := envOrDefault("REQTRACE_LOG_LEVEL", orDefault(fc.LogLevel, "info"))
	if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("REQTRACE_LOG_LEVEL: %w", err)
	}

	if s := envOrDefault("REQTRACE_EXPORT_INTERVAL", fc.Export.Interval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("REQTRACE_EXPORT_INTERVAL: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("REQTRACE_EXPORT_INTERVAL: must not be negative")
		}
		c.ExportInterval = d
	}

	var err error
	if c.IDPrefixLength, err = envInt("REQTRACE_ID_PREFIX_LENGTH", orDefaultInt(fc.IDs.PrefixLength, 4)); err != nil {
		return nil, err
	}
	if c.IDSequenceWidth, err = envInt("REQTRACE_ID_SEQUENCE_WIDTH", orDefaultInt(fc.IDs.SequenceWidth, 3)); err != nil {
		return nil, err
	}
	if c.IDProbeAttempts, err = envInt("REQTRACE_ID_PROBE_ATTEMPTS", orDefaultInt(fc.IDs.ProbeAttempts, 3)); err != nil {
		return nil, err
	}

	return c, nil
}

// RequireDatabase reports whether a database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}
	return nil
}

// IDOptions returns the allocator settings.
func (c *Config) IDOptions() idgen.Options {
	return idgen.Options{
		PrefixLength:  c.IDPrefixLength,
		SequenceWidth: c.IDSequenceWidth,
		ProbeAttempts: c.IDProbeAttempts,
	}
}

// S3Options returns the S3 export destination settings. ok is false when
// no bucket is configured.
func (c *Config) S3Options() (opts export.S3Options, ok bool) {
	if c.ExportS3Bucket == "" {
		return export.S3Options{}, false
	}
	return export.S3Options{
		Bucket:   c.ExportS3Bucket,
		Key:      c.ExportS3Key,
		Region:   c.ExportS3Region,
		Endpoint: c.ExportS3Endpoint,
	}, true
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orDefaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// envInt parses a positive integer from key, falling back when unset.
func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s: must be at least 1, got %d", key, n)
	}
	return n, nil
}
