package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/google/uuid"
)

// StartConsolidationRunWithClient inserts a new row into <dataset>.consolidation_runs
// with status=RUNNING and returns the generated run_id.
func StartConsolidationRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, sources []string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			started_ts,
			status,
			sources
		)
		VALUES (
			@run_id,
			@started_ts,
			@status,
			@sources
		)
	`, tableRef(client.Project(), datasetID, runsTable)))

	if sources == nil {
		sources = []string{}
	}
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: bq.RunStatusRunning},
		{Name: "sources", Value: sources},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartConsolidationRun: %w", err)
	}
	return runID, nil
}

// MarkConsolidationRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Update errors are logged.
func MarkConsolidationRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, tableRef(client.Project(), datasetID, runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkConsolidationRunFailed: update failed")
	}
}

// MarkConsolidationRunSucceededWithClient sets status=SUCCESS, finished_ts and
// row_count, then supersedes every older successful run.
func MarkConsolidationRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, rowCount int) error {
	table := tableRef(client.Project(), datasetID, runsTable)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    row_count = @row_count,
		    error_message = ""
		WHERE run_id = @run_id
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "row_count", Value: rowCount},
		{Name: "run_id", Value: runID},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkConsolidationRunSucceeded: %w", err)
	}

	sq := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @superseded
		WHERE status = @success
		  AND run_id != @run_id
	`, table))
	sq.Parameters = []bigquery.QueryParameter{
		{Name: "superseded", Value: bq.RunStatusSuperseded},
		{Name: "success", Value: bq.RunStatusSuccess},
		{Name: "run_id", Value: runID},
	}
	if err := runDML(ctx, sq); err != nil {
		return fmt.Errorf("MarkConsolidationRunSucceeded: superseding older runs: %w", err)
	}

	return nil
}

// DeleteConsolidationRunWithClient deletes the ledger rows of a run, then the run itself.
func DeleteConsolidationRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string) error {
	for _, table := range []string{ledgerTable, runsTable} {
		q := client.Query(fmt.Sprintf(`
			DELETE FROM %s
			WHERE run_id = @run_id
		`, tableRef(client.Project(), datasetID, table)))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "run_id", Value: runID},
		}

		if err := runDML(ctx, q); err != nil {
			return fmt.Errorf("DeleteConsolidationRun: deleting from %s: %w", table, err)
		}
	}
	return nil
}
