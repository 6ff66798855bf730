package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-consolidator/internal/categorizer"
	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/export"
	"github.com/dvloznov/ledger-consolidator/internal/gcs"
	"github.com/dvloznov/ledger-consolidator/internal/gcsuploader"
	infraBQ "github.com/dvloznov/ledger-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/dvloznov/ledger-consolidator/internal/notionsync"
	"github.com/dvloznov/ledger-consolidator/internal/pipeline"
	"github.com/dvloznov/ledger-consolidator/internal/suggest"
	"github.com/dvloznov/ledger-consolidator/internal/transfer"
)

// app holds the external clients of one consolidate run. Unconfigured
// collaborators stay nil.
type app struct {
	cfg *config.Config

	storage gcs.StorageService
	closers []func() error

	repo *infraBQ.BigQueryLedgerRepository
}

func newApp(ctx context.Context, cfg *config.Config, inputs []string) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Export.GCSBucket != "" || anyGCS(inputs) {
		s, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return nil, fmt.Errorf("newApp: %w", err)
		}
		a.storage = s
		a.closers = append(a.closers, s.Close)
	}

	if cfg.BigQuery.Enabled {
		repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("newApp: %w", err)
		}
		a.repo = repo
		a.closers = append(a.closers, repo.Close)
	}

	return a, nil
}

// Close releases every client opened by newApp.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func anyGCS(inputs []string) bool {
	for _, in := range inputs {
		if strings.HasPrefix(in, "gs://") {
			return true
		}
	}
	return false
}

// exporters returns the configured exporters in a fixed order: local files
// first, then remote destinations.
func (a *app) exporters() []export.Exporter {
	cfg := a.cfg
	var out []export.Exporter

	if cfg.Export.JSONPath != "" {
		out = append(out, &export.JSONFile{Path: cfg.Export.JSONPath})
	}
	if cfg.Export.CSVPath != "" {
		out = append(out, &export.CSVFile{Path: cfg.Export.CSVPath})
	}
	if cfg.Export.GCSBucket != "" {
		out = append(out, &export.GCS{Storage: a.storage, Bucket: cfg.Export.GCSBucket, Prefix: cfg.Export.GCSPrefix})
	}
	if a.repo != nil {
		out = append(out, &export.BigQuery{Repo: a.repo})
	}
	if len(cfg.Elasticsearch.Addresses) > 0 {
		out = append(out, &export.Elasticsearch{Addresses: cfg.Elasticsearch.Addresses, Index: cfg.Elasticsearch.Index})
	}
	if cfg.Notion.Enabled {
		out = append(out, &notionsync.Exporter{
			Service:    notionsync.NewNotionClient(cfg.Notion.Token),
			DatabaseID: cfg.Notion.DatabaseID,
			DryRun:     cfg.Notion.DryRun,
		})
	}
	return out
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	registry, err := categorizer.NewRegistryFromConfig(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	opts := pipeline.Options{
		Registry:  registry,
		Detector:  transfer.NewDetectorFromConfig(a.cfg),
		Exporters: a.exporters(),
	}

	if a.cfg.AI.Enabled {
		client, err := suggest.NewGeminiClient(ctx)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Category suggestions disabled")
		} else {
			opts.Suggester = suggest.NewSuggester(client, a.cfg.AI.Model, a.cfg.AI.MaxRows)
		}
	}

	if len(opts.Exporters) == 0 {
		log := logger.FromContext(ctx)
		log.Warn().Msg("No exporters configured; the ledger is only summarized")
	}
	return pipeline.NewConsolidationPipeline(opts), nil
}
