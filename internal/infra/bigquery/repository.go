package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
)

// Re-export the shared interface so callers can depend on this package alone.
type LedgerRepository = bq.LedgerRepository

// BigQueryLedgerRepository is the concrete implementation of LedgerRepository
// that interacts with BigQuery. It holds a shared client for all operations.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	datasetID string
}

var _ LedgerRepository = (*BigQueryLedgerRepository)(nil)

// NewBigQueryLedgerRepository creates a repository bound to projectID.datasetID.
func NewBigQueryLedgerRepository(ctx context.Context, projectID, datasetID string) (*BigQueryLedgerRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: project ID is required")
	}
	if datasetID == "" {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: dataset ID is required")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{
		client:    client,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryLedgerRepository) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, r.client, r.datasetID)
}

func (r *BigQueryLedgerRepository) InsertLedgerRows(ctx context.Context, rows []*bq.LedgerRow) error {
	return InsertLedgerRowsWithClient(ctx, r.client, r.datasetID, rows)
}

func (r *BigQueryLedgerRepository) QueryLedgerByDateRange(ctx context.Context, start, end civil.Date) ([]*bq.LedgerRow, error) {
	return QueryLedgerByDateRangeWithClient(ctx, r.client, r.datasetID, start, end)
}

func (r *BigQueryLedgerRepository) StartConsolidationRun(ctx context.Context, sources []string) (string, error) {
	return StartConsolidationRunWithClient(ctx, r.client, r.datasetID, sources)
}

func (r *BigQueryLedgerRepository) MarkConsolidationRunFailed(ctx context.Context, runID string, runErr error) {
	MarkConsolidationRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

func (r *BigQueryLedgerRepository) MarkConsolidationRunSucceeded(ctx context.Context, runID string, rowCount int) error {
	return MarkConsolidationRunSucceededWithClient(ctx, r.client, r.datasetID, runID, rowCount)
}

func (r *BigQueryLedgerRepository) DeleteConsolidationRun(ctx context.Context, runID string) error {
	return DeleteConsolidationRunWithClient(ctx, r.client, r.datasetID, runID)
}
