package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
	"google.golang.org/api/googleapi"
)

const (
	ledgerTable = "ledger"
	runsTable   = "consolidation_runs"

	// maxErrorLen bounds the stored error_message.
	maxErrorLen = 2000

	// insertChunkSize is the number of rows per streaming insert request.
	insertChunkSize = 500
)

// tableRef returns the backtick-quoted `project.dataset.table` identifier used in SQL.
func tableRef(projectID, datasetID, table string) string {
	return "`" + projectID + "." + datasetID + "." + table + "`"
}

// tableSchemas returns the inferred schema of every table the repository owns.
func tableSchemas() (map[string]bigquery.Schema, error) {
	ledger, err := bigquery.InferSchema(bq.LedgerRow{})
	if err != nil {
		return nil, fmt.Errorf("tableSchemas: ledger: %w", err)
	}
	runs, err := bigquery.InferSchema(bq.ConsolidationRunRow{})
	if err != nil {
		return nil, fmt.Errorf("tableSchemas: consolidation_runs: %w", err)
	}
	return map[string]bigquery.Schema{
		ledgerTable: ledger,
		runsTable:   runs,
	}, nil
}

// EnsureTablesWithClient creates the dataset tables that do not exist yet.
// Existing tables are left untouched.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) error {
	schemas, err := tableSchemas()
	if err != nil {
		return err
	}

	for _, name := range []string{runsTable, ledgerTable} {
		table := client.Dataset(datasetID).Table(name)
		if _, err := table.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: reading %s metadata: %w", name, err)
		}

		meta := &bigquery.TableMetadata{Schema: schemas[name]}
		if name == ledgerTable {
			meta.TimePartitioning = &bigquery.TimePartitioning{
				Type:  bigquery.MonthPartitioningType,
				Field: "accounting_date",
			}
		}
		if err := table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureTables: creating %s: %w", name, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// runDML runs a statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
