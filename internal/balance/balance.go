// Package balance computes the two running balance columns of the ledger.
package balance

import (
	"sort"

	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Result holds the closing state of a balance pass.
type Result struct {
	Opening          map[string]decimal.Decimal
	ByInstitution    map[string]decimal.Decimal
	Holdings         map[string]decimal.Decimal // per-institution cash, internal transfer legs included
	InstitutionTotal decimal.Decimal // cash held in accounts, card float excluded
	Real             decimal.Decimal // net position including committed card spend
}

// Sort orders the ledger by accounting date, then effective date. Rows with
// equal dates keep their relative order.
func Sort(ledger []*domain.Transaction) {
	sort.SliceStable(ledger, func(i, j int) bool {
		a, b := ledger[i], ledger[j]
		if a.AccountingDate != b.AccountingDate {
			return a.AccountingDate.Before(b.AccountingDate)
		}
		return a.EffectiveDate.Before(b.EffectiveDate)
	})
}

// Compute sorts the ledger and writes BalanceInstitution and BalanceReal on
// every row. Institutions missing from opening start at zero.
//
// Credit card rows move only the real balance. Internal transfers move
// neither: the money only changes account.
func Compute(ledger []*domain.Transaction, opening map[string]decimal.Decimal) Result {
	Sort(ledger)

	res := Result{
		Opening:       make(map[string]decimal.Decimal, len(opening)),
		ByInstitution: make(map[string]decimal.Decimal, len(opening)),
		Holdings:      make(map[string]decimal.Decimal, len(opening)),
	}

	total := decimal.Zero
	for inst, amount := range opening {
		res.Opening[inst] = amount
		res.ByInstitution[inst] = amount
		res.Holdings[inst] = amount
		total = total.Add(amount)
	}
	net := total

	for _, tx := range ledger {
		isCard := tx.CategoryAuto == domain.CategoryCreditCard
		isTransfer := tx.CategoryAuto == domain.CategoryInternalTransfer

		if !isCard && !isTransfer {
			res.ByInstitution[tx.Institution] = res.ByInstitution[tx.Institution].Add(tx.Amount)
			total = total.Add(tx.Amount)
		} else if _, ok := res.ByInstitution[tx.Institution]; !ok {
			res.ByInstitution[tx.Institution] = decimal.Zero
		}
		tx.BalanceInstitution = total

		if !isCard {
			res.Holdings[tx.Institution] = res.Holdings[tx.Institution].Add(tx.Amount)
		} else if _, ok := res.Holdings[tx.Institution]; !ok {
			res.Holdings[tx.Institution] = decimal.Zero
		}

		if !isTransfer {
			net = net.Add(tx.Amount)
		}
		tx.BalanceReal = net
	}

	res.InstitutionTotal = total
	res.Real = net
	return res
}
