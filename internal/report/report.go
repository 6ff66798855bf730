// Package report aggregates the final consolidated ledger for presentation
// and export.
package report

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/balance"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Report is the terminal view of a consolidation run: a summary plus the
// enriched ledger, unchanged, for exporters.
type Report struct {
	Summary Summary
	Ledger  []*domain.Transaction
}

// Summary holds the aggregate statistics of a ledger.
type Summary struct {
	TransactionCount int
	PeriodStart      civil.Date
	PeriodEnd        civil.Date

	// Income and Expenses exclude internal transfers. Expenses is negative.
	Income   decimal.Decimal
	Expenses decimal.Decimal

	InternalTransferCount  int
	InternalTransferVolume decimal.Decimal // sum of outbound legs, as a positive amount
	UncategorizedCount     int

	FinalBalanceInstitution decimal.Decimal
	FinalBalanceReal        decimal.Decimal

	Categories   []CategoryTotal
	Institutions []InstitutionTotal

	// Issues lists ledger invariant violations found while aggregating.
	// A ledger produced by the pipeline has none.
	Issues []string
}

// CategoryTotal is the count and signed sum of one category.
type CategoryTotal struct {
	Category domain.Category
	Count    int
	Total    decimal.Decimal
}

// InstitutionTotal summarizes one institution.
type InstitutionTotal struct {
	Institution  string
	Count        int
	Income       decimal.Decimal
	Expenses     decimal.Decimal
	FinalBalance decimal.Decimal // running balance, internal transfers excluded
	Holdings     decimal.Decimal // cash held, internal transfers included
}

// Build aggregates the ledger. balances may be nil when balances were not
// computed; final balances are then taken from the last row.
func Build(ledger []*domain.Transaction, balances *balance.Result) *Report {
	s := Summary{
		TransactionCount:       len(ledger),
		Income:                 decimal.Zero,
		Expenses:               decimal.Zero,
		InternalTransferVolume: decimal.Zero,
	}

	cats := make(map[domain.Category]*CategoryTotal)
	insts := make(map[string]*InstitutionTotal)

	for i, tx := range ledger {
		if i == 0 || tx.EffectiveDate.Before(s.PeriodStart) {
			s.PeriodStart = tx.EffectiveDate
		}
		if i == 0 || tx.EffectiveDate.After(s.PeriodEnd) {
			s.PeriodEnd = tx.EffectiveDate
		}

		if i > 0 && tx.AccountingDate.Before(ledger[i-1].AccountingDate) {
			s.Issues = append(s.Issues, fmt.Sprintf("row %d (%s) is out of accounting-date order", i, tx.ID))
		}
		if tx.Amount.IsZero() {
			s.Issues = append(s.Issues, fmt.Sprintf("row %d (%s) has a zero amount", i, tx.ID))
		}
		if !tx.AmountIn.Sub(tx.AmountOut).Equal(tx.Amount) {
			s.Issues = append(s.Issues, fmt.Sprintf("row %d (%s) in/out split does not match amount", i, tx.ID))
		}

		ct, ok := cats[tx.CategoryAuto]
		if !ok {
			ct = &CategoryTotal{Category: tx.CategoryAuto, Total: decimal.Zero}
			cats[tx.CategoryAuto] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(tx.Amount)

		it, ok := insts[tx.Institution]
		if !ok {
			it = &InstitutionTotal{Institution: tx.Institution, Income: decimal.Zero, Expenses: decimal.Zero, FinalBalance: decimal.Zero, Holdings: decimal.Zero}
			insts[tx.Institution] = it
		}
		it.Count++

		switch tx.CategoryAuto {
		case domain.CategoryInternalTransfer:
			s.InternalTransferCount++
			if tx.IsOutflow() {
				s.InternalTransferVolume = s.InternalTransferVolume.Add(tx.Amount.Abs())
			}
			continue
		case domain.CategoryOther:
			s.UncategorizedCount++
		}

		if tx.IsInflow() {
			s.Income = s.Income.Add(tx.Amount)
			it.Income = it.Income.Add(tx.Amount)
		} else {
			s.Expenses = s.Expenses.Add(tx.Amount)
			it.Expenses = it.Expenses.Add(tx.Amount)
		}
	}

	switch {
	case balances != nil:
		s.FinalBalanceInstitution = balances.InstitutionTotal
		s.FinalBalanceReal = balances.Real
		for inst, amount := range balances.ByInstitution {
			it, ok := insts[inst]
			if !ok {
				it = &InstitutionTotal{Institution: inst, Income: decimal.Zero, Expenses: decimal.Zero, Holdings: decimal.Zero}
				insts[inst] = it
			}
			it.FinalBalance = amount
			it.Holdings = balances.Holdings[inst]
		}
	case len(ledger) > 0:
		last := ledger[len(ledger)-1]
		s.FinalBalanceInstitution = last.BalanceInstitution
		s.FinalBalanceReal = last.BalanceReal
	}

	for _, c := range domain.AllCategories {
		if ct, ok := cats[c]; ok {
			s.Categories = append(s.Categories, *ct)
			delete(cats, c)
		}
	}
	// Labels outside the known set (fixed overrides never produce them, but
	// exporters may round-trip foreign rows) go last, by name.
	var extra []string
	for c := range cats {
		extra = append(extra, string(c))
	}
	sort.Strings(extra)
	for _, c := range extra {
		s.Categories = append(s.Categories, *cats[domain.Category(c)])
	}

	for _, it := range insts {
		s.Institutions = append(s.Institutions, *it)
	}
	sort.Slice(s.Institutions, func(i, j int) bool {
		return s.Institutions[i].Institution < s.Institutions[j].Institution
	})

	return &Report{Summary: s, Ledger: ledger}
}

// Log writes the summary as one structured event plus one per institution.
func (s Summary) Log(log zerolog.Logger) {
	log.Info().
		Int("transactions", s.TransactionCount).
		Str("period_start", s.PeriodStart.String()).
		Str("period_end", s.PeriodEnd.String()).
		Str("income", s.Income.StringFixed(2)).
		Str("expenses", s.Expenses.StringFixed(2)).
		Int("internal_transfers", s.InternalTransferCount).
		Str("internal_transfer_volume", s.InternalTransferVolume.StringFixed(2)).
		Int("uncategorized", s.UncategorizedCount).
		Str("balance_institution", s.FinalBalanceInstitution.StringFixed(2)).
		Str("balance_real", s.FinalBalanceReal.StringFixed(2)).
		Msg("Consolidation report")

	for _, it := range s.Institutions {
		log.Info().
			Str("institution", it.Institution).
			Int("transactions", it.Count).
			Str("income", it.Income.StringFixed(2)).
			Str("expenses", it.Expenses.StringFixed(2)).
			Str("balance", it.FinalBalance.StringFixed(2)).
			Msg("Institution summary")
	}

	for _, issue := range s.Issues {
		log.Warn().Str("issue", issue).Msg("Ledger invariant violated")
	}
}
