package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one normalized statement row in the consolidated ledger.
// Parsers create it, the core mutates CategoryAuto and the two balance
// columns in place, and exporters read it.
type Transaction struct {
	ID string

	EffectiveDate  civil.Date // posting date shown on the statement
	AccountingDate civil.Date // settlement date; equals EffectiveDate for most banks

	Institution  string // owning bank or card account, the unit of balance tracking
	AccountLabel string // branch/account number, or holder + last-4 for cards

	Type        string
	Description string

	Amount    decimal.Decimal // positive = inflow, negative = outflow
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal

	CategoryAuto   Category
	CategoryManual string // user-owned, never written by the core
	NoteManual     string // user-owned, never written by the core

	BalanceInstitution decimal.Decimal
	BalanceReal        decimal.Decimal
}

// Normalize trims free-text fields, assigns an ID when missing, derives the
// in/out decomposition from Amount and fills a missing date from the other one.
func (t *Transaction) Normalize() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	t.Institution = strings.TrimSpace(t.Institution)
	t.AccountLabel = strings.TrimSpace(t.AccountLabel)
	t.Type = strings.TrimSpace(t.Type)
	t.Description = strings.TrimSpace(t.Description)

	switch {
	case t.Amount.IsPositive():
		t.AmountIn = t.Amount
		t.AmountOut = decimal.Zero
	case t.Amount.IsNegative():
		t.AmountIn = decimal.Zero
		t.AmountOut = t.Amount.Abs()
	default:
		t.AmountIn = decimal.Zero
		t.AmountOut = decimal.Zero
	}

	switch {
	case !t.AccountingDate.IsValid() && t.EffectiveDate.IsValid():
		t.AccountingDate = t.EffectiveDate
	case !t.EffectiveDate.IsValid() && t.AccountingDate.IsValid():
		t.EffectiveDate = t.AccountingDate
	}
}

// Valid reports whether the row may enter the ledger: it needs a non-zero
// amount and at least one usable date.
func (t *Transaction) Valid() bool {
	if t.Amount.IsZero() {
		return false
	}
	return t.AccountingDate.IsValid() || t.EffectiveDate.IsValid()
}

// SearchText is the upper-cased "type description" text used for keyword rules.
func (t *Transaction) SearchText() string {
	return SearchText(t.Type, t.Description)
}

// CounterpartyText is the upper-cased "description type" text used when
// looking for the owner's name or generic transfer phrases.
func (t *Transaction) CounterpartyText() string {
	return strings.ToUpper(t.Description + " " + t.Type)
}

// SearchText builds the keyword search text from raw statement fields.
func SearchText(txType, description string) string {
	return strings.ToUpper(txType + " " + description)
}

// IsInflow reports whether money entered the account.
func (t *Transaction) IsInflow() bool {
	return t.Amount.IsPositive()
}

// IsOutflow reports whether money left the account.
func (t *Transaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}
