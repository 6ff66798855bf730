package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/shopspring/decimal"
)

// Document is the JSON export of a consolidation run.
type Document struct {
	RunID        string          `json:"run_id"`
	Summary      SummaryDocument `json:"summary"`
	Transactions []Record        `json:"transactions"`
}

// SummaryDocument is the JSON form of report.Summary.
type SummaryDocument struct {
	TransactionCount        int                   `json:"transaction_count"`
	PeriodStart             civil.Date            `json:"period_start"`
	PeriodEnd               civil.Date            `json:"period_end"`
	Income                  decimal.Decimal       `json:"income"`
	Expenses                decimal.Decimal       `json:"expenses"`
	InternalTransferCount   int                   `json:"internal_transfer_count"`
	InternalTransferVolume  decimal.Decimal       `json:"internal_transfer_volume"`
	UncategorizedCount      int                   `json:"uncategorized_count"`
	FinalBalanceInstitution decimal.Decimal       `json:"final_balance_institution"`
	FinalBalanceReal        decimal.Decimal       `json:"final_balance_real"`
	Categories              []CategoryDocument    `json:"categories"`
	Institutions            []InstitutionDocument `json:"institutions"`
	Issues                  []string              `json:"issues,omitempty"`
}

type CategoryDocument struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type InstitutionDocument struct {
	Institution  string          `json:"institution"`
	Count        int             `json:"count"`
	Income       decimal.Decimal `json:"income"`
	Expenses     decimal.Decimal `json:"expenses"`
	FinalBalance decimal.Decimal `json:"final_balance"`
	Holdings     decimal.Decimal `json:"holdings"`
}

// NewDocument builds the JSON document of a report.
func NewDocument(runID string, rep *report.Report) Document {
	s := rep.Summary
	doc := Document{
		RunID: runID,
		Summary: SummaryDocument{
			TransactionCount:        s.TransactionCount,
			PeriodStart:             s.PeriodStart,
			PeriodEnd:               s.PeriodEnd,
			Income:                  s.Income,
			Expenses:                s.Expenses,
			InternalTransferCount:   s.InternalTransferCount,
			InternalTransferVolume:  s.InternalTransferVolume,
			UncategorizedCount:      s.UncategorizedCount,
			FinalBalanceInstitution: s.FinalBalanceInstitution,
			FinalBalanceReal:        s.FinalBalanceReal,
			Categories:              make([]CategoryDocument, 0, len(s.Categories)),
			Institutions:            make([]InstitutionDocument, 0, len(s.Institutions)),
			Issues:                  s.Issues,
		},
		Transactions: Records(rep.Ledger),
	}
	for _, c := range s.Categories {
		doc.Summary.Categories = append(doc.Summary.Categories, CategoryDocument{
			Category: c.Category.String(),
			Count:    c.Count,
			Total:    c.Total,
		})
	}
	for _, it := range s.Institutions {
		doc.Summary.Institutions = append(doc.Summary.Institutions, InstitutionDocument{
			Institution:  it.Institution,
			Count:        it.Count,
			Income:       it.Income,
			Expenses:     it.Expenses,
			FinalBalance: it.FinalBalance,
			Holdings:     it.Holdings,
		})
	}
	return doc
}

// MarshalDocument renders the indented JSON document of a report.
func MarshalDocument(runID string, rep *report.Report) ([]byte, error) {
	data, err := json.MarshalIndent(NewDocument(runID, rep), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("MarshalDocument: %w", err)
	}
	return append(data, '\n'), nil
}

// JSONFile writes the report document to a local path.
type JSONFile struct {
	Path string
}

func (e *JSONFile) Name() string { return "json" }

func (e *JSONFile) Export(ctx context.Context, runID string, rep *report.Report) error {
	data, err := MarshalDocument(runID, rep)
	if err != nil {
		return err
	}
	return writeFile(e.Path, data)
}

// writeFile creates parent directories and replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
