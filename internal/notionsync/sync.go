package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	queryPageSize = 100
)

// SyncResult counts the page operations of one sync.
type SyncResult struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// SyncLedger mirrors the ledger into a Notion database keyed by Transaction ID.
// Pages whose transaction is no longer in the ledger are archived, existing
// pages are updated without touching their manual fields, and missing rows
// are created. Individual page failures are logged and counted.
func SyncLedger(ctx context.Context, notionClient NotionService, notionDBID, runID string, ledger []*domain.Transaction, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	log.Info().
		Str("run_id", runID).
		Int("transaction_count", len(ledger)).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	current := make(map[string]bool, len(ledger))
	for _, tx := range ledger {
		current[tx.ID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncLedger: querying Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		txID := extractTransactionID(page)

		// Pages without a Transaction ID, duplicates and rows gone from the
		// ledger are stale.
		if txID != "" && current[txID] {
			if _, dup := existing[txID]; !dup {
				existing[txID] = string(page.ID)
				continue
			}
		}

		if dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			res.Deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			res.Failed++
			continue
		}
		res.Deleted++
	}

	for i := 0; i < len(ledger); i += BatchSize {
		end := i + BatchSize
		if end > len(ledger) {
			end = len(ledger)
		}

		batch := ledger[i:end]
		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Int("batch_size", len(batch)).
			Msg("Processing batch")

		for _, tx := range batch {
			pageID, found := existing[tx.ID]

			if dryRun {
				if found {
					log.Debug().Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					res.Updated++
				} else {
					log.Debug().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
					res.Created++
				}
				continue
			}

			if found {
				if _, err := notionClient.UpdatePage(ctx, pageID, TransactionToNotionProperties(runID, tx, false)); err != nil {
					log.Warn().
						Err(err).
						Str("transaction_id", tx.ID).
						Str("page_id", pageID).
						Msg("Failed to update Notion page")
					res.Failed++
					continue
				}
				res.Updated++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, TransactionToNotionProperties(runID, tx, true))
			if err != nil {
				log.Warn().
					Err(err).
					Str("transaction_id", tx.ID).
					Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			existing[tx.ID] = string(page.ID)
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Int("total", len(ledger)).
		Msg("Ledger sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// Exporter publishes a consolidation report to Notion.
type Exporter struct {
	Service    NotionService
	DatabaseID string
	DryRun     bool
}

func (e *Exporter) Name() string { return "notion" }

// Export syncs the report ledger and fails when any page operation failed.
func (e *Exporter) Export(ctx context.Context, runID string, rep *report.Report) error {
	res, err := SyncLedger(ctx, e.Service, e.DatabaseID, runID, rep.Ledger, e.DryRun)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("Notion export: %d page operations failed", res.Failed)
	}
	return nil
}
