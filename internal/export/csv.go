package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/report"
)

// CSVHeader is the column order of the ledger CSV.
var CSVHeader = []string{
	"effective_date",
	"accounting_date",
	"institution",
	"account_label",
	"type",
	"description",
	"amount",
	"amount_in",
	"amount_out",
	"category_auto",
	"category_manual",
	"note_manual",
	"balance_institution",
	"balance_real",
	"id",
}

// WriteCSV writes the header and one line per ledger row.
func WriteCSV(w io.Writer, ledger []*domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}

	for _, tx := range ledger {
		rec := []string{
			tx.EffectiveDate.String(),
			tx.AccountingDate.String(),
			tx.Institution,
			tx.AccountLabel,
			tx.Type,
			tx.Description,
			tx.Amount.StringFixed(2),
			tx.AmountIn.StringFixed(2),
			tx.AmountOut.StringFixed(2),
			tx.CategoryAuto.String(),
			tx.CategoryManual,
			tx.NoteManual,
			tx.BalanceInstitution.StringFixed(2),
			tx.BalanceReal.StringFixed(2),
			tx.ID,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteCSV: row %s: %w", tx.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// MarshalCSV renders the ledger CSV in memory.
func MarshalCSV(ledger []*domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ledger); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVFile writes the ledger CSV to a local path.
type CSVFile struct {
	Path string
}

func (e *CSVFile) Name() string { return "csv" }

func (e *CSVFile) Export(ctx context.Context, runID string, rep *report.Report) error {
	data, err := MarshalCSV(rep.Ledger)
	if err != nil {
		return err
	}
	return writeFile(e.Path, data)
}
