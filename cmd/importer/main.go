// Command importer loads the restaurant dataset file into the configured
// store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"foodfinder/config"
	"foodfinder/database"
	"foodfinder/importer"
	"foodfinder/logging"
)

var version = "dev"

const name = "foodfinder-import"

func main() {
	logging.SetDefaultFromEnv(name, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Import the restaurant dataset into the store",
		Version: version,
		Description: `Reads a JSON array of {"restaurants": [{"restaurant": {...}}]} entries,
normalizes every restaurant and writes them in batches. Entries without a
restaurant or a location are skipped.

The store is selected by STORE_DRIVER (mongo or postgres) and its connection
settings, read from the environment or a .env file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "path to the dataset file",
				Sources: cli.EnvVars("IMPORT_FILE"),
				Value:   "file1.json",
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "restaurants written per batch",
				Sources: cli.EnvVars("IMPORT_BATCH_SIZE"),
				Value:   importer.DefaultBatchSize,
			},
			&cli.BoolFlag{
				Name:  "upsert",
				Usage: "replace restaurants that share a source id instead of inserting duplicates",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "transform and validate the file without writing to the store",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars(logging.EnvLogLevel),
				Value:   "info",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.SetDefaultStructuredLogger(name, version, cmd.String("log-level"))

			opts, err := parseOptions(cmd)
			if err != nil {
				return err
			}
			return run(ctx, cmd.String("file"), opts)
		},
	}
}

func parseOptions(cmd *cli.Command) (importer.Options, error) {
	size := cmd.Int("batch-size")
	if size < 1 {
		return importer.Options{}, fmt.Errorf("invalid --batch-size %d: must be at least 1", size)
	}
	return importer.Options{
		BatchSize: size,
		Upsert:    cmd.Bool("upsert"),
		DryRun:    cmd.Bool("dry-run"),
	}, nil
}

func run(ctx context.Context, path string, opts importer.Options) error {
	var w importer.Writer
	if !opts.DryRun {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := database.Connect(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", cfg.Store.Driver, err)
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				slog.Warn("closing store failed", "error", err)
			}
		}()
		w = store
	}

	res, err := importer.ImportFile(ctx, w, path, opts)
	if err != nil {
		return err
	}

	slog.Info("import complete",
		"file", path,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"batches", res.Batches,
		"upsert", opts.Upsert,
		"dryRun", opts.DryRun,
	)
	return nil
}
