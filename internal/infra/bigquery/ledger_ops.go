package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
	"google.golang.org/api/iterator"
)

// InsertLedgerRowsWithClient streams rows into <dataset>.ledger in chunks.
func InsertLedgerRowsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*bq.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(ledgerTable).Inserter()
	for _, chunk := range chunkRows(rows, insertChunkSize) {
		if err := inserter.Put(ctx, chunk); err != nil {
			return fmt.Errorf("InsertLedgerRows: inserting rows: %w", err)
		}
	}
	return nil
}

func chunkRows(rows []*bq.LedgerRow, size int) [][]*bq.LedgerRow {
	var chunks [][]*bq.LedgerRow
	for size < len(rows) {
		rows, chunks = rows[size:], append(chunks, rows[:size:size])
	}
	if len(rows) > 0 {
		chunks = append(chunks, rows)
	}
	return chunks
}

// ledgerByDateRangeSQL selects the rows of the most recent successful run,
// so superseded and failed runs never leak into the result.
func ledgerByDateRangeSQL(projectID, datasetID string) string {
	return fmt.Sprintf(`
		SELECT
			l.run_id,
			l.transaction_id,
			l.position,
			l.effective_date,
			l.accounting_date,
			l.institution,
			l.account_label,
			l.transaction_type,
			l.description,
			l.amount,
			l.amount_in,
			l.amount_out,
			l.category_auto,
			l.category_manual,
			l.note_manual,
			l.balance_institution,
			l.balance_real,
			l.created_ts
		FROM %s l
		WHERE l.run_id = (
			SELECT r.run_id
			FROM %s r
			WHERE r.status = @status
			ORDER BY r.finished_ts DESC
			LIMIT 1
		)
		  AND l.accounting_date >= @start_date
		  AND l.accounting_date <= @end_date
		ORDER BY l.position
	`, tableRef(projectID, datasetID, ledgerTable), tableRef(projectID, datasetID, runsTable))
}

// QueryLedgerByDateRangeWithClient reads the ledger rows for [start, end].
func QueryLedgerByDateRangeWithClient(ctx context.Context, client *bigquery.Client, datasetID string, start, end civil.Date) ([]*bq.LedgerRow, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("QueryLedgerByDateRange: end %s is before start %s", end, start)
	}

	q := client.Query(ledgerByDateRangeSQL(client.Project(), datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryLedgerByDateRange: query read: %w", err)
	}

	var rows []*bq.LedgerRow
	for {
		var r bq.LedgerRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryLedgerByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
