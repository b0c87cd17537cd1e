package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/docutag/linkbender"
	"github.com/docutag/linkbender/api"
	"github.com/docutag/linkbender/db"
	"github.com/docutag/linkbender/metrics"
	"github.com/docutag/linkbender/models"
	"github.com/docutag/linkbender/tracing"
)

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.Bool("disable-cors") {
		cfg.Server.CORSEnabled = false
	}

	ctx := context.Background()

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracer, continuing without tracing")
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("error shutting down tracer")
			}
		}()
	}

	m := metrics.New()
	a, err := buildApp(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer a.close()

	stop := make(chan struct{})
	go updateStoreMetrics(a.orchestrator.Store(), m, cfg.Server.MetricsInterval, stop)
	defer close(stop)

	server := api.NewServer(api.Config{Addr: cfg.Server.Addr, CORSEnabled: cfg.Server.CORSEnabled}, a.orchestrator, m)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr": cfg.Server.Addr,
			"cors": cfg.Server.CORSEnabled,
		}).Info("linkbender service starting")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// updateStoreMetrics refreshes the record count and, for SQL stores, pool statistics
func updateStoreMetrics(store linkbender.Store, m *metrics.Metrics, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if sqlStore, ok := store.(*db.DB); ok {
			m.UpdateDBStats(sqlStore.DB())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		count, err := store.Count(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("failed to count records for metrics")
			continue
		}
		m.SetRecordCount(count)
	}
}

func scrapeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one URL argument")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	opts := linkbender.ScrapeOptions{Force: c.Bool("force")}
	if c.IsSet("length") || c.IsSet("style") {
		prefs := models.DefaultPreferences()
		if c.IsSet("length") {
			prefs.Length = c.String("length")
		}
		if c.IsSet("style") {
			prefs.Style = c.String("style")
		}
		opts.Preferences = &prefs
	}

	result, scrapeErr := a.orchestrator.Scrape(ctx, c.Args().First(), opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return scrapeErr
}

func tagsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	entries, err := store.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No tags recorded")
		return nil
	}

	fmt.Printf("%-30s %-8s %-20s\n", "Tag", "Count", "First seen")
	fmt.Println(strings.Repeat("-", 60))
	for _, e := range entries {
		fmt.Printf("%-30s %-8d %-20s\n", e.Name, e.Count, e.CreatedAt.Format(models.TimestampLayout))
	}
	fmt.Printf("\nTotal: %d tags\n", len(entries))
	return nil
}

func migrateUpAction(c *cli.Context) error {
	return withSQL(c, func(store *db.DB) error {
		return db.Migrate(store.DB(), store.Driver())
	})
}

func migrateStatusAction(c *cli.Context) error {
	return withSQL(c, func(store *db.DB) error { return nil })
}

func migrateDownAction(c *cli.Context) error {
	return withSQL(c, func(store *db.DB) error {
		return db.Rollback(store.DB(), store.Driver())
	})
}

// withSQL runs fn against an unmigrated SQL connection and prints the resulting status
func withSQL(c *cli.Context, fn func(store *db.DB) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := openSQL(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fn(store); err != nil {
		return err
	}
	return printMigrationStatus(store)
}

func printMigrationStatus(store *db.DB) error {
	statuses, err := db.GetMigrationStatus(store.DB(), store.Driver())
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %-30s %-8s\n", "Version", "Name", "Applied")
	fmt.Println(strings.Repeat("-", 50))
	for _, s := range statuses {
		fmt.Printf("%-8d %-30s %-8t\n", s.Version, s.Name, s.Applied)
	}
	return nil
}
