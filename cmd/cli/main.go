package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/gcsuploader"
	infraBQ "github.com/dvloznov/ledger-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/ledger-consolidator/internal/ingest"
	"github.com/dvloznov/ledger-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/dvloznov/ledger-consolidator/internal/pipeline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "consolidate":
		runConsolidate(log)
	case "upload":
		runUpload(log)
	case "show":
		runShow(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger Consolidator CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  consolidate  Consolidate normalized statement batches into one ledger")
	fmt.Println("  upload       Upload a normalized batch file to GCS")
	fmt.Println("  show         Show the stored ledger for a period")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// loadConfig loads the configuration and rebuilds the logger from its
// logging section.
func loadConfig(log zerolog.Logger, path string) (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	configured, err := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid logging configuration")
	}
	return cfg, configured
}

func runConsolidate(log zerolog.Logger) {
	fs := flag.NewFlagSet("consolidate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file (or $"+config.EnvConfigPath+")")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall run timeout")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(log, *configPath)

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = cfg.Inputs
	}
	if len(inputs) == 0 {
		log.Fatal().Msg("Error: no inputs given on the command line or in the configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, err := newApp(ctx, cfg, inputs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer svc.Close()

	runID := uuid.New().String()
	var tracker pipeline.RunTracker
	if svc.repo != nil {
		if err := svc.repo.EnsureTables(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare BigQuery tables")
		}
		if runID, err = svc.repo.StartConsolidationRun(ctx, inputs); err != nil {
			log.Fatal().Err(err).Msg("Failed to start consolidation run")
		}
		tracker = svc.repo
	}
	ctx = logger.WithRun(ctx, runID)
	log = logger.FromContext(ctx)

	log.Info().Int("inputs", len(inputs)).Msg("Starting consolidation")

	loader := ingest.NewLoader(
		ingest.Sources{Storage: svc.storage},
		inmemory.Options{
			Workers:    cfg.Ingest.Workers,
			MaxRetries: cfg.Ingest.MaxRetries,
			RetryDelay: cfg.Ingest.RetryDelay,
		},
		inmemory.NewStore(),
	)
	loaded, err := loader.Load(ctx, runID, inputs)
	if err != nil {
		if tracker != nil {
			tracker.MarkConsolidationRunFailed(ctx, runID, err)
		}
		log.Fatal().Err(err).Msg("Loading batches failed")
	}

	p, err := svc.pipeline(ctx)
	if err != nil {
		if tracker != nil {
			tracker.MarkConsolidationRunFailed(ctx, runID, err)
		}
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	state := &pipeline.PipelineState{
		RunID:           runID,
		Batches:         loaded.Batches,
		OpeningBalances: cfg.OpeningBalanceMap(),
	}
	if err := pipeline.ExecuteTracked(ctx, p, state, tracker); err != nil {
		log.Fatal().Err(err).Msg("Consolidation failed")
	}

	log.Info().
		Int("failed_sources", len(loaded.Failures)).
		Strs("exported", state.Exported).
		Msg("Consolidation completed")
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to a normalized batch JSON file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	// The file must decode as a batch before it is uploaded.
	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}
	batch, stats, err := ingest.DecodeBatch(data, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("File is not a normalized batch")
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("institution", batch.Institution).
		Int("rows", batch.Len()).
		Int("dropped", stats.Dropped).
		Msg("Uploading batch to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Println(gcsuploader.ObjectURI(*bucketName, *objectName))
}

func runShow(log zerolog.Logger) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file (or $"+config.EnvConfigPath+")")
	startStr := fs.String("start", "", "Start date in YYYY-MM-DD format (required)")
	endStr := fs.String("end", "", "End date in YYYY-MM-DD format (required)")
	fs.Parse(os.Args[2:])

	if *startStr == "" || *endStr == "" {
		log.Fatal().Msg("Error: --start and --end are required")
	}
	start, err := civil.ParseDate(*startStr)
	if err != nil {
		log.Fatal().Err(err).Str("start", *startStr).Msg("Error: invalid start date, expected YYYY-MM-DD")
	}
	end, err := civil.ParseDate(*endStr)
	if err != nil {
		log.Fatal().Err(err).Str("end", *endStr).Msg("Error: invalid end date, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		log.Fatal().Str("start", *startStr).Str("end", *endStr).Msg("Error: end date must not be before start date")
	}

	cfg, log := loadConfig(log, *configPath)
	if cfg.BigQuery.ProjectID == "" {
		log.Fatal().Msg("Error: bigquery.project_id is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	rows, err := repo.QueryLedgerByDateRange(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query ledger")
	}

	fmt.Printf("\n=== Ledger %s to %s (%d rows) ===\n", start, end, len(rows))
	for _, r := range rows {
		tx, err := r.Transaction()
		if err != nil {
			log.Error().Err(err).Str("transaction_id", r.TransactionID).Msg("Skipping unreadable row")
			continue
		}
		fmt.Printf("%s  %-18s %-18s %12s  %-40.40s  inst=%s real=%s\n",
			tx.AccountingDate,
			tx.Institution,
			tx.CategoryAuto,
			tx.Amount.StringFixed(2),
			tx.Description,
			tx.BalanceInstitution.StringFixed(2),
			tx.BalanceReal.StringFixed(2),
		)
	}
	fmt.Println()
}
