package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "linkbender.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Annotation.MaxConcurrency != 3 {
		t.Errorf("Annotation.MaxConcurrency = %d", cfg.Annotation.MaxConcurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: DEBUG
server:
  addr: ":9090"
  shutdown_timeout: 10s
database:
  driver: Postgres
  dsn: "host=localhost dbname=linkbender"
annotation:
  provider: xai
  api_key: secret
  timeout: 45s
archive:
  backend: s3
  s3:
    bucket: scrapes
    region: us-east-1
lock:
  backend: redis
  redis_address: localhost:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want lowercased", cfg.Database.Driver)
	}
	if cfg.Annotation.Timeout != 45*time.Second {
		t.Errorf("Annotation.Timeout = %v", cfg.Annotation.Timeout)
	}
	if cfg.Annotation.MaxInputChars != 24000 {
		t.Errorf("Unset fields must keep defaults, MaxInputChars = %d", cfg.Annotation.MaxInputChars)
	}
	if cfg.Archive.S3.Bucket != "scrapes" {
		t.Errorf("Archive.S3.Bucket = %q", cfg.Archive.S3.Bucket)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Fetch.Timeout = %v", cfg.Fetch.Timeout)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad yaml", body: "server: [", wantErr: "failed to parse"},
		{name: "unknown driver", body: "database:\n  driver: oracle\n", wantErr: "unknown database driver"},
		{name: "mongo without uri", body: "database:\n  driver: mongodb\n", wantErr: "mongo_uri"},
		{name: "provider without key", body: "annotation:\n  provider: gemini\n", wantErr: "api_key"},
		{name: "unknown provider", body: "annotation:\n  provider: bard\n", wantErr: "unknown annotation provider"},
		{name: "s3 without bucket", body: "archive:\n  backend: s3\n", wantErr: "bucket"},
		{name: "unknown archive", body: "archive:\n  backend: ftp\n", wantErr: "unknown archive backend"},
		{name: "redis without address", body: "lock:\n  backend: redis\n", wantErr: "redis_address"},
		{name: "unknown lock", body: "lock:\n  backend: etcd\n", wantErr: "unknown lock backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNormalizeAfterOverride(t *testing.T) {
	tests := []struct {
		name     string
		override func(*Config)
		check    func(*testing.T, *Config)
	}{
		{
			name: "mixed case provider",
			override: func(c *Config) {
				c.Annotation.Provider = "XAI"
				c.Annotation.APIKey = "key"
			},
			check: func(t *testing.T, c *Config) {
				if c.Annotation.Provider != "xai" {
					t.Errorf("Annotation.Provider = %q", c.Annotation.Provider)
				}
			},
		},
		{
			name:     "mixed case driver with padding",
			override: func(c *Config) { c.Database.Driver = " SQLite " },
			check: func(t *testing.T, c *Config) {
				if c.Database.Driver != "sqlite" {
					t.Errorf("Database.Driver = %q", c.Database.Driver)
				}
			},
		},
		{
			name:     "upper case log level",
			override: func(c *Config) { c.LogLevel = "DEBUG" },
			check: func(t *testing.T, c *Config) {
				if c.LogLevel != "debug" {
					t.Errorf("LogLevel = %q", c.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.override(cfg)

			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
