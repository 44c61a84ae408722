package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/spotter/internal/config"
	"github.com/claude/spotter/internal/importer"
	"github.com/claude/spotter/internal/localstore"
	"github.com/claude/spotter/internal/logger"
	"github.com/claude/spotter/internal/storage"
	"github.com/claude/spotter/internal/upload"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	planPath := flag.String("path", "", "plan file or directory of plan files (required)")
	dryRun := flag.Bool("dry-run", false, "validate plans without creating sessions")
	serverURL := flag.String("server", "", "send plans to a Spotter server instead of the database")
	apiKey := flag.String("api-key", os.Getenv("SPOTTER_AUTH_API_KEY"), "API key for -server")
	flag.Parse()

	if *planPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: spotter-import [-config config.yaml | -server URL] -path plans/ [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()
	var store importer.Store

	// Remote mode needs no config file
	if *serverURL != "" {
		log, logCloser := logger.New(config.LoggingConfig{Level: "info"}, os.Stdout)
		defer logCloser.Close()
		if *dryRun {
			log.Info("DRY RUN mode: no sessions will be created")
		}
		store = upload.NewClient(*serverURL, *apiKey)
		run(ctx, log, store, *planPath, *dryRun)
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logger.New(cfg.Logging, os.Stdout)
	defer logCloser.Close()

	if *dryRun {
		log.Info("DRY RUN mode: no sessions will be created")
	}

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		ls, err := localstore.Open(cfg.Database.Path)
		if err != nil {
			log.Error("failed to open sqlite store", "path", cfg.Database.Path, "error", err)
			os.Exit(1)
		}
		defer ls.Close()
		store = ls
	default:
		dsn := cfg.Database.DSN()
		if _, err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
	}
	log.Info("database connected")

	run(ctx, log, store, *planPath, *dryRun)
}

func run(ctx context.Context, log *slog.Logger, store importer.Store, path string, dryRun bool) {
	imp := importer.New(store, log, dryRun)
	stats, err := imp.Import(ctx, path)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("import complete")
}

func printStats(stats *importer.Stats) {
	fmt.Println()
	fmt.Println("=== Import Summary ===")
	fmt.Printf("  Files processed:  %d\n", stats.FilesProcessed)
	fmt.Printf("  Files skipped:    %d (already planned)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Sessions created: %d\n", stats.SessionsCreated)
	fmt.Printf("  Sets created:     %d\n", stats.SetsCreated)

	if len(stats.Duplicates) > 0 {
		fmt.Printf("\n  Skipped plans:\n")
		for _, name := range stats.Duplicates {
			fmt.Printf("    - %s\n", name)
		}
	}
	fmt.Println()
}
