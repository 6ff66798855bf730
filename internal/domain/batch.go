package domain

import "github.com/shopspring/decimal"

// Batch is the output of one external statement parser: the rows of a single
// institution, unsorted and not yet categorized.
type Batch struct {
	Institution string
	Source      string // URI or path the batch was read from

	// OpeningBalance is set when the parser found one on the statement
	// (e.g. a "SALDO ANTERIOR" line). Nil means none was detected.
	OpeningBalance *decimal.Decimal

	Transactions []*Transaction
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Transactions)
}
