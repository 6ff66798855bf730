package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Consolidation run statuses.
const (
	RunStatusRunning    = "RUNNING"
	RunStatusSuccess    = "SUCCESS"
	RunStatusFailed     = "FAILED"
	RunStatusSuperseded = "SUPERSEDED"
)

// numericScale is the fractional precision of a BigQuery NUMERIC column.
const numericScale = 9

// LedgerRepository provides the ledger persistence operations.
type LedgerRepository interface {
	// EnsureTables creates the ledger and consolidation_runs tables when missing.
	EnsureTables(ctx context.Context) error

	// InsertLedgerRows inserts the rows of one consolidation run.
	InsertLedgerRows(ctx context.Context, rows []*LedgerRow) error

	// QueryLedgerByDateRange returns the rows of the latest successful run whose
	// accounting date lies within [start, end].
	QueryLedgerByDateRange(ctx context.Context, start, end civil.Date) ([]*LedgerRow, error)

	// StartConsolidationRun records a new run with status=RUNNING and returns its run_id.
	StartConsolidationRun(ctx context.Context, sources []string) (string, error)

	// MarkConsolidationRunFailed sets status=FAILED, finished_ts and error_message.
	MarkConsolidationRunFailed(ctx context.Context, runID string, runErr error)

	// MarkConsolidationRunSucceeded sets status=SUCCESS, finished_ts and the row count,
	// and marks earlier successful runs as SUPERSEDED.
	MarkConsolidationRunSucceeded(ctx context.Context, runID string, rowCount int) error

	// DeleteConsolidationRun removes a run and all of its ledger rows.
	DeleteConsolidationRun(ctx context.Context, runID string) error
}

// LedgerRow is one row of the consolidated ledger as stored in BigQuery.
type LedgerRow struct {
	RunID         string `bigquery:"run_id" json:"run_id"`
	TransactionID string `bigquery:"transaction_id" json:"transaction_id"`
	Position      int64  `bigquery:"position" json:"position"`

	EffectiveDate  civil.Date `bigquery:"effective_date" json:"effective_date"`
	AccountingDate civil.Date `bigquery:"accounting_date" json:"accounting_date"`

	Institution     string `bigquery:"institution" json:"institution"`
	AccountLabel    string `bigquery:"account_label" json:"account_label"`
	TransactionType string `bigquery:"transaction_type" json:"transaction_type"`
	Description     string `bigquery:"description" json:"description"`

	Amount    *big.Rat `bigquery:"amount" json:"-"`
	AmountIn  *big.Rat `bigquery:"amount_in" json:"-"`
	AmountOut *big.Rat `bigquery:"amount_out" json:"-"`

	CategoryAuto   string              `bigquery:"category_auto" json:"category_auto"`
	CategoryManual bigquery.NullString `bigquery:"category_manual" json:"category_manual,omitempty"`
	NoteManual     bigquery.NullString `bigquery:"note_manual" json:"note_manual,omitempty"`

	BalanceInstitution *big.Rat `bigquery:"balance_institution" json:"-"`
	BalanceReal        *big.Rat `bigquery:"balance_real" json:"-"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// MarshalJSON renders NUMERIC columns as fixed two-decimal strings.
func (r LedgerRow) MarshalJSON() ([]byte, error) {
	type Alias LedgerRow
	return json.Marshal(&struct {
		Amount             string `json:"amount"`
		AmountIn           string `json:"amount_in"`
		AmountOut          string `json:"amount_out"`
		BalanceInstitution string `json:"balance_institution"`
		BalanceReal        string `json:"balance_real"`
		*Alias
	}{
		Amount:             ratString(r.Amount),
		AmountIn:           ratString(r.AmountIn),
		AmountOut:          ratString(r.AmountOut),
		BalanceInstitution: ratString(r.BalanceInstitution),
		BalanceReal:        ratString(r.BalanceReal),
		Alias:              (*Alias)(&r),
	})
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}

// ConsolidationRunRow represents a consolidation run record in BigQuery.
type ConsolidationRunRow struct {
	RunID string `bigquery:"run_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	Sources  []string           `bigquery:"sources"`
	RowCount bigquery.NullInt64 `bigquery:"row_count"`
}

// ToLedgerRow converts an enriched ledger transaction for insertion. position
// is the row's index in the chronological ledger.
func ToLedgerRow(runID string, position int, tx *domain.Transaction, created time.Time) *LedgerRow {
	return &LedgerRow{
		RunID:              runID,
		TransactionID:      tx.ID,
		Position:           int64(position),
		EffectiveDate:      tx.EffectiveDate,
		AccountingDate:     tx.AccountingDate,
		Institution:        tx.Institution,
		AccountLabel:       tx.AccountLabel,
		TransactionType:    tx.Type,
		Description:        tx.Description,
		Amount:             tx.Amount.Rat(),
		AmountIn:           tx.AmountIn.Rat(),
		AmountOut:          tx.AmountOut.Rat(),
		CategoryAuto:       tx.CategoryAuto.String(),
		CategoryManual:     nullString(tx.CategoryManual),
		NoteManual:         nullString(tx.NoteManual),
		BalanceInstitution: tx.BalanceInstitution.Rat(),
		BalanceReal:        tx.BalanceReal.Rat(),
		CreatedTS:          created,
	}
}

// ToLedgerRows converts a whole ledger, stamping every row with the same time.
func ToLedgerRows(runID string, ledger []*domain.Transaction) []*LedgerRow {
	now := time.Now().UTC()
	rows := make([]*LedgerRow, 0, len(ledger))
	for i, tx := range ledger {
		rows = append(rows, ToLedgerRow(runID, i, tx, now))
	}
	return rows
}

// Transaction converts a stored row back into a ledger transaction. Unknown
// category labels read back as Other.
func (r *LedgerRow) Transaction() (*domain.Transaction, error) {
	category, ok := domain.ParseCategory(r.CategoryAuto)
	if !ok {
		category = domain.CategoryOther
	}

	tx := &domain.Transaction{
		ID:             r.TransactionID,
		EffectiveDate:  r.EffectiveDate,
		AccountingDate: r.AccountingDate,
		Institution:    r.Institution,
		AccountLabel:   r.AccountLabel,
		Type:           r.TransactionType,
		Description:    r.Description,
		CategoryAuto:   category,
		CategoryManual: r.CategoryManual.StringVal,
		NoteManual:     r.NoteManual.StringVal,
	}

	amounts := []struct {
		name string
		src  *big.Rat
		dst  *decimal.Decimal
	}{
		{"amount", r.Amount, &tx.Amount},
		{"amount_in", r.AmountIn, &tx.AmountIn},
		{"amount_out", r.AmountOut, &tx.AmountOut},
		{"balance_institution", r.BalanceInstitution, &tx.BalanceInstitution},
		{"balance_real", r.BalanceReal, &tx.BalanceReal},
	}
	for _, a := range amounts {
		d, err := ratToDecimal(a.src)
		if err != nil {
			return nil, fmt.Errorf("LedgerRow.Transaction: %s: %w", a.name, err)
		}
		*a.dst = d
	}
	return tx, nil
}

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(numericScale))
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
