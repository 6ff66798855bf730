package domain

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestNormalize_SplitsAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantIn  string
		wantOut string
	}{
		{name: "inflow", amount: "150.25", wantIn: "150.25", wantOut: "0"},
		{name: "outflow", amount: "-80.10", wantIn: "0", wantOut: "80.1"},
		{name: "zero", amount: "0", wantIn: "0", wantOut: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Amount: decimal.RequireFromString(tt.amount)}
			tx.Normalize()

			if !tx.AmountIn.Equal(decimal.RequireFromString(tt.wantIn)) {
				t.Errorf("AmountIn = %s, want %s", tx.AmountIn, tt.wantIn)
			}
			if !tx.AmountOut.Equal(decimal.RequireFromString(tt.wantOut)) {
				t.Errorf("AmountOut = %s, want %s", tx.AmountOut, tt.wantOut)
			}
			if tx.AmountIn.IsPositive() && tx.AmountOut.IsPositive() {
				t.Error("AmountIn and AmountOut must not both be non-zero")
			}
		})
	}
}

func TestNormalize_FillsMissingDate(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 1, Day: 10}

	tx := &Transaction{EffectiveDate: d, Amount: decimal.NewFromInt(1)}
	tx.Normalize()
	if tx.AccountingDate != d {
		t.Errorf("AccountingDate = %v, want %v", tx.AccountingDate, d)
	}

	tx = &Transaction{AccountingDate: d, Amount: decimal.NewFromInt(1)}
	tx.Normalize()
	if tx.EffectiveDate != d {
		t.Errorf("EffectiveDate = %v, want %v", tx.EffectiveDate, d)
	}
}

func TestNormalize_KeepsDistinctDates(t *testing.T) {
	eff := civil.Date{Year: 2024, Month: 1, Day: 10}
	acc := civil.Date{Year: 2024, Month: 2, Day: 5}

	tx := &Transaction{EffectiveDate: eff, AccountingDate: acc, Amount: decimal.NewFromInt(-3)}
	tx.Normalize()

	if tx.EffectiveDate != eff || tx.AccountingDate != acc {
		t.Errorf("dates changed: effective=%v accounting=%v", tx.EffectiveDate, tx.AccountingDate)
	}
	if tx.ID == "" {
		t.Error("expected an ID to be assigned")
	}
}

func TestValid(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 3, Day: 1}

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{name: "complete", tx: Transaction{AccountingDate: d, Amount: decimal.NewFromInt(5)}, want: true},
		{name: "zero amount", tx: Transaction{AccountingDate: d}, want: false},
		{name: "no date", tx: Transaction{Amount: decimal.NewFromInt(5)}, want: false},
		{name: "effective only", tx: Transaction{EffectiveDate: d, Amount: decimal.NewFromInt(-5)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchTexts(t *testing.T) {
	tx := &Transaction{Type: "Pix enviado", Description: "Joao Silva"}

	if got, want := tx.SearchText(), "PIX ENVIADO JOAO SILVA"; got != want {
		t.Errorf("SearchText() = %q, want %q", got, want)
	}
	if got, want := tx.CounterpartyText(), "JOAO SILVA PIX ENVIADO"; got != want {
		t.Errorf("CounterpartyText() = %q, want %q", got, want)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range AllCategories {
		got, ok := ParseCategory(string(c))
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, ok)
		}
	}
	if _, ok := ParseCategory("Groceries"); ok {
		t.Error("expected unknown label to be rejected")
	}
}
