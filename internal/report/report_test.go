package report

import (
	"bytes"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/balance"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func row(institution, amount string, day int, cat domain.Category) *domain.Transaction {
	date := civil.Date{Year: 2024, Month: 3, Day: day}
	tx := &domain.Transaction{
		Institution:    institution,
		Amount:         decimal.RequireFromString(amount),
		EffectiveDate:  date,
		AccountingDate: date,
		CategoryAuto:   cat,
	}
	tx.Normalize()
	return tx
}

func sampleLedger() []*domain.Transaction {
	return []*domain.Transaction{
		row("A", "3000", 1, domain.CategoryYields),
		row("A", "-500", 2, domain.CategoryInternalTransfer),
		row("B", "500", 2, domain.CategoryInternalTransfer),
		row("B", "-120.50", 5, domain.CategoryFees),
		row("C", "-80", 9, domain.CategoryCreditCard),
		row("C", "-19.50", 20, domain.CategoryOther),
	}
}

func TestBuild_Totals(t *testing.T) {
	ledger := sampleLedger()
	bal := balance.Compute(ledger, map[string]decimal.Decimal{"A": decimal.NewFromInt(100)})

	r := Build(ledger, &bal)
	s := r.Summary

	if s.TransactionCount != 6 {
		t.Errorf("TransactionCount = %d, want 6", s.TransactionCount)
	}
	if s.PeriodStart != (civil.Date{Year: 2024, Month: 3, Day: 1}) || s.PeriodEnd != (civil.Date{Year: 2024, Month: 3, Day: 20}) {
		t.Errorf("period = %s..%s", s.PeriodStart, s.PeriodEnd)
	}
	if !s.Income.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Income = %s, want 3000", s.Income)
	}
	if !s.Expenses.Equal(decimal.RequireFromString("-220")) {
		t.Errorf("Expenses = %s, want -220", s.Expenses)
	}
	if s.InternalTransferCount != 2 || !s.InternalTransferVolume.Equal(decimal.NewFromInt(500)) {
		t.Errorf("internal transfers = %d / %s", s.InternalTransferCount, s.InternalTransferVolume)
	}
	if s.UncategorizedCount != 1 {
		t.Errorf("UncategorizedCount = %d, want 1", s.UncategorizedCount)
	}
	if !s.FinalBalanceReal.Equal(decimal.RequireFromString("2880")) {
		t.Errorf("FinalBalanceReal = %s, want 2880", s.FinalBalanceReal)
	}
	if !s.FinalBalanceInstitution.Equal(decimal.RequireFromString("2960")) {
		t.Errorf("FinalBalanceInstitution = %s, want 2960", s.FinalBalanceInstitution)
	}
	if len(s.Issues) != 0 {
		t.Errorf("unexpected issues: %v", s.Issues)
	}
	if len(r.Ledger) != len(ledger) {
		t.Errorf("ledger not passed through")
	}

	var gotCats []domain.Category
	for _, c := range s.Categories {
		gotCats = append(gotCats, c.Category)
	}
	wantCats := []domain.Category{
		domain.CategoryYields,
		domain.CategoryCreditCard,
		domain.CategoryFees,
		domain.CategoryInternalTransfer,
		domain.CategoryOther,
	}
	if diff := cmp.Diff(wantCats, gotCats); diff != "" {
		t.Errorf("category order mismatch (-want +got):\n%s", diff)
	}

	var gotInst []string
	for _, it := range s.Institutions {
		gotInst = append(gotInst, it.Institution)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, gotInst); diff != "" {
		t.Errorf("institutions mismatch (-want +got):\n%s", diff)
	}
	if !s.Institutions[0].FinalBalance.Equal(decimal.NewFromInt(3100)) {
		t.Errorf("A final balance = %s, want 3100", s.Institutions[0].FinalBalance)
	}
}

func TestBuild_ReportsIssues(t *testing.T) {
	ledger := sampleLedger()
	ledger[0], ledger[5] = ledger[5], ledger[0]
	ledger[1].AmountIn = decimal.NewFromInt(1)

	s := Build(ledger, nil).Summary
	if len(s.Issues) < 2 {
		t.Errorf("expected ordering and split issues, got %v", s.Issues)
	}
}

func TestBuild_Empty(t *testing.T) {
	s := Build(nil, nil).Summary
	if s.TransactionCount != 0 || !s.Income.IsZero() || len(s.Issues) != 0 {
		t.Errorf("unexpected summary for empty ledger: %+v", s)
	}
}

func TestSummary_Log(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	ledger := sampleLedger()
	bal := balance.Compute(ledger, nil)
	Build(ledger, &bal).Summary.Log(log)

	out := buf.String()
	for _, want := range []string{"Consolidation report", `"institution":"B"`, `"income":"3000.00"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
