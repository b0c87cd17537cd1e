// Package config loads linkbender settings from a YAML file on top of
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all linkbender configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Lock       LockConfig       `yaml:"lock"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSEnabled     bool          `yaml:"cors_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// DatabaseConfig selects the scrape store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite or mongodb
	DSN    string `yaml:"dsn"`    // SQL connection string or SQLite file path

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	MongoUsername string `yaml:"mongo_username"`
	MongoPassword string `yaml:"mongo_password"`
}

// AnnotationConfig selects the language model provider
type AnnotationConfig struct {
	Provider       string        `yaml:"provider"` // ollama, openai, xai or gemini
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxInputChars  int           `yaml:"max_input_chars"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// FetchConfig controls page retrieval
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// ArchiveConfig selects where full extracted text is kept
type ArchiveConfig struct {
	Backend  string   `yaml:"backend"` // none, filesystem or s3
	BasePath string   `yaml:"base_path"`
	S3       S3Config `yaml:"s3"`
}

// S3Config contains S3-compatible bucket settings
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// LockConfig selects how same-URL scrapes are serialized
type LockConfig struct {
	Backend       string        `yaml:"backend"` // none, local or redis
	RedisAddress  string        `yaml:"redis_address"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	LeaseTTL      time.Duration `yaml:"lease_ttl"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC endpoint; empty disables export
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:            ":8080",
			CORSEnabled:     true,
			ShutdownTimeout: 30 * time.Second,
			MetricsInterval: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        "sqlite",
			DSN:           "linkbender.db",
			MongoDatabase: "linkbender",
		},
		Annotation: AnnotationConfig{
			Provider:       "ollama",
			Timeout:        2 * time.Minute,
			MaxInputChars:  24000,
			MaxConcurrency: 3,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 5 * 1024 * 1024,
		},
		Archive: ArchiveConfig{
			Backend:  "none",
			BasePath: "./storage",
		},
		Lock: LockConfig{
			Backend:  "local",
			LeaseTTL: 5 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "linkbender",
			SampleRatio: 1,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize lowercases backend names and fills zero durations and limits.
// Load calls it; callers that override fields afterwards call it again.
func (c *Config) Normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Annotation.Provider = strings.ToLower(strings.TrimSpace(c.Annotation.Provider))
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))

	if c.Annotation.MaxConcurrency <= 0 {
		c.Annotation.MaxConcurrency = 3
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.MetricsInterval <= 0 {
		c.Server.MetricsInterval = 15 * time.Second
	}
}

// Validate checks that every backend name is known and that each
// selected backend has the settings it needs
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	case "mongodb":
		if c.Database.MongoURI == "" {
			return fmt.Errorf("database.mongo_uri is required for driver mongodb")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Annotation.Provider {
	case "ollama", "":
	case "openai", "xai", "gemini":
		if c.Annotation.APIKey == "" {
			return fmt.Errorf("annotation.api_key is required for provider %s", c.Annotation.Provider)
		}
	default:
		return fmt.Errorf("unknown annotation provider %q", c.Annotation.Provider)
	}

	switch c.Archive.Backend {
	case "none", "":
	case "filesystem":
		if c.Archive.BasePath == "" {
			return fmt.Errorf("archive.base_path is required for the filesystem backend")
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	switch c.Lock.Backend {
	case "none", "", "local":
	case "redis":
		if c.Lock.RedisAddress == "" {
			return fmt.Errorf("lock.redis_address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	return nil
}
