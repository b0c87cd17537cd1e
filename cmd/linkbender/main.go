package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "linkbender",
		Usage: "scrape web pages, summarize and tag them with a language model",
		Flags: globalFlags(),
		Before: func(c *cli.Context) error {
			return setupLogging(c)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address", EnvVars: []string{"LINKBENDER_ADDR"}},
					&cli.BoolFlag{Name: "disable-cors", Usage: "disable CORS headers"},
				},
				Action: serveAction,
			},
			{
				Name:      "scrape",
				Usage:     "scrape a single URL and print the result as JSON",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "ignore the cache and write a new record"},
					&cli.StringFlag{Name: "length", Usage: "custom summary length: short, medium or detailed"},
					&cli.StringFlag{Name: "style", Usage: "custom summary style: bullet_points, conversational or technical"},
				},
				Action: scrapeAction,
			},
			{
				Name:   "tags",
				Usage:  "list the tag ledger",
				Action: tagsAction,
			},
			{
				Name:  "migrate",
				Usage: "manage SQL schema migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply pending migrations", Action: migrateUpAction},
					{Name: "status", Usage: "show applied and pending migrations", Action: migrateStatusAction},
					{Name: "down", Usage: "roll back the latest migration", Action: migrateDownAction},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("linkbender failed")
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"LINKBENDER_CONFIG"}},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
		&cli.BoolFlag{Name: "log-json", Usage: "emit JSON log lines", EnvVars: []string{"LOG_JSON"}},
		&cli.StringFlag{Name: "db-driver", Usage: "postgres, sqlite or mongodb", EnvVars: []string{"DB_DRIVER"}},
		&cli.StringFlag{Name: "db-dsn", Usage: "SQL connection string or SQLite path", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringFlag{Name: "mongo-uri", Usage: "MongoDB connection URI", EnvVars: []string{"MONGODB_URI"}},
		&cli.StringFlag{Name: "provider", Usage: "annotation provider: ollama, openai, xai or gemini", EnvVars: []string{"ANNOTATION_PROVIDER"}},
		&cli.StringFlag{Name: "model", Usage: "annotation model", EnvVars: []string{"ANNOTATION_MODEL"}},
		&cli.StringFlag{Name: "base-url", Usage: "annotation provider base URL", EnvVars: []string{"ANNOTATION_BASE_URL", "OLLAMA_URL"}},
		&cli.StringFlag{Name: "api-key", Usage: "annotation provider API key", EnvVars: []string{"ANNOTATION_API_KEY", "XAI_API_KEY"}},
		&cli.StringFlag{Name: "otlp-endpoint", Usage: "OTLP gRPC collector address", EnvVars: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"}},
	}
}

func setupLogging(c *cli.Context) error {
	if c.Bool("log-json") || c.Args().First() == "serve" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
	return nil
}
