package export

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
	"github.com/dvloznov/ledger-consolidator/internal/report"
)

// BigQuery inserts the ledger rows of a run. The run record itself is owned
// by the caller that started it.
type BigQuery struct {
	Repo bq.LedgerRepository
}

func (e *BigQuery) Name() string { return "bigquery" }

func (e *BigQuery) Export(ctx context.Context, runID string, rep *report.Report) error {
	if err := e.Repo.InsertLedgerRows(ctx, bq.ToLedgerRows(runID, rep.Ledger)); err != nil {
		return fmt.Errorf("BigQuery.Export: %w", err)
	}
	return nil
}
