// Package export writes the consolidated ledger to its destinations: local
// files, Cloud Storage, BigQuery and Elasticsearch.
package export

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/shopspring/decimal"
)

// Exporter delivers one consolidation report to a destination.
type Exporter interface {
	Name() string
	Export(ctx context.Context, runID string, rep *report.Report) error
}

// Record is the exported projection of one ledger row.
type Record struct {
	ID                 string          `json:"id"`
	EffectiveDate      civil.Date      `json:"effective_date"`
	AccountingDate     civil.Date      `json:"accounting_date"`
	Institution        string          `json:"institution"`
	AccountLabel       string          `json:"account_label"`
	Type               string          `json:"type"`
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	AmountIn           decimal.Decimal `json:"amount_in"`
	AmountOut          decimal.Decimal `json:"amount_out"`
	CategoryAuto       string          `json:"category_auto"`
	CategoryManual     string          `json:"category_manual"`
	NoteManual         string          `json:"note_manual"`
	BalanceInstitution decimal.Decimal `json:"balance_institution"`
	BalanceReal        decimal.Decimal `json:"balance_real"`
}

// NewRecord projects a ledger transaction.
func NewRecord(tx *domain.Transaction) Record {
	return Record{
		ID:                 tx.ID,
		EffectiveDate:      tx.EffectiveDate,
		AccountingDate:     tx.AccountingDate,
		Institution:        tx.Institution,
		AccountLabel:       tx.AccountLabel,
		Type:               tx.Type,
		Description:        tx.Description,
		Amount:             tx.Amount,
		AmountIn:           tx.AmountIn,
		AmountOut:          tx.AmountOut,
		CategoryAuto:       tx.CategoryAuto.String(),
		CategoryManual:     tx.CategoryManual,
		NoteManual:         tx.NoteManual,
		BalanceInstitution: tx.BalanceInstitution,
		BalanceReal:        tx.BalanceReal,
	}
}

// Records projects the whole ledger, preserving order.
func Records(ledger []*domain.Transaction) []Record {
	out := make([]Record, len(ledger))
	for i, tx := range ledger {
		out[i] = NewRecord(tx)
	}
	return out
}
