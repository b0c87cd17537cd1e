package main

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/docutag/linkbender"
	"github.com/docutag/linkbender/annotate"
	"github.com/docutag/linkbender/config"
	"github.com/docutag/linkbender/db"
	"github.com/docutag/linkbender/db/mongodb"
	"github.com/docutag/linkbender/lock"
	"github.com/docutag/linkbender/metrics"
	"github.com/docutag/linkbender/storage"
)

// loadConfig reads the config file and applies flag and environment overrides
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"log-level", &cfg.LogLevel},
		{"db-driver", &cfg.Database.Driver},
		{"db-dsn", &cfg.Database.DSN},
		{"mongo-uri", &cfg.Database.MongoURI},
		{"provider", &cfg.Annotation.Provider},
		{"model", &cfg.Annotation.Model},
		{"base-url", &cfg.Annotation.BaseURL},
		{"api-key", &cfg.Annotation.APIKey},
		{"otlp-endpoint", &cfg.Tracing.Endpoint},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			*o.target = c.String(o.flag)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	return cfg, nil
}

// openStore opens the configured scrape store
func openStore(ctx context.Context, cfg config.DatabaseConfig) (linkbender.Store, error) {
	switch cfg.Driver {
	case "mongodb":
		return mongodb.New(ctx, mongodb.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Username: cfg.MongoUsername,
			Password: cfg.MongoPassword,
		})
	default:
		return db.New(db.Config{Driver: cfg.Driver, DSN: cfg.DSN})
	}
}

// openSQL connects to a SQL store without migrating it
func openSQL(cfg config.DatabaseConfig) (*db.DB, error) {
	if cfg.Driver != db.DriverPostgres && cfg.Driver != db.DriverSQLite {
		return nil, fmt.Errorf("migrations are only available for SQL drivers, not %s", cfg.Driver)
	}
	return db.Open(db.Config{Driver: cfg.Driver, DSN: cfg.DSN})
}

func openArchive(ctx context.Context, cfg config.ArchiveConfig) (storage.Archive, error) {
	switch cfg.Backend {
	case storage.BackendFilesystem:
		return storage.New(storage.Config{BasePath: cfg.BasePath})
	case storage.BackendS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	default:
		return nil, nil
	}
}

func openLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	switch cfg.Backend {
	case lock.BackendRedis:
		return lock.NewRedis(ctx, lock.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			LeaseTTL: cfg.LeaseTTL,
		})
	case lock.BackendLocal:
		return lock.NewLocal(), nil
	default:
		return lock.None{}, nil
	}
}

// app holds everything a command needs; close releases it in reverse order
type app struct {
	orchestrator *linkbender.Orchestrator
	closers      []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.WithError(err).Warn("error during shutdown")
		}
	}
}

// buildApp wires the store, annotation client, archive and lock into an orchestrator
func buildApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.closers = append(a.closers, store)

	annotator, err := annotate.New(ctx, annotate.Config{
		Provider:      cfg.Annotation.Provider,
		Model:         cfg.Annotation.Model,
		BaseURL:       cfg.Annotation.BaseURL,
		APIKey:        cfg.Annotation.APIKey,
		Timeout:       cfg.Annotation.Timeout,
		MaxInputChars: cfg.Annotation.MaxInputChars,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create annotation client: %w", err)
	}
	if closer, ok := annotator.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	archive, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	locker, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	if closer, ok := locker.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	fetcher := linkbender.NewHTTPFetcher(linkbender.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})

	opts := []linkbender.Option{linkbender.WithLocker(locker), linkbender.WithMetrics(m)}
	if archive != nil {
		opts = append(opts, linkbender.WithArchive(archive))
	}

	a.orchestrator = linkbender.New(
		linkbender.Config{MaxConcurrentAnnotations: cfg.Annotation.MaxConcurrency},
		store, fetcher, annotator, opts...,
	)

	log.WithFields(log.Fields{
		"database": cfg.Database.Driver,
		"provider": annotator.Name(),
		"archive":  cfg.Archive.Backend,
		"lock":     cfg.Lock.Backend,
	}).Info("linkbender initialized")

	return a, nil
}
