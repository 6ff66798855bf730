package categorizer

import (
	"testing"

	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

func mustRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := NewRules(config.DefaultCategories())
	if err != nil {
		t.Fatalf("NewRules() error = %v", err)
	}
	return rules
}

func TestKeyword_Categorize(t *testing.T) {
	k := NewKeyword(mustRules(t))

	tests := []struct {
		name        string
		txType      string
		description string
		amount      string
		want        domain.Category
	}{
		{name: "investment", txType: "APLICACAO", description: "CDB BANCO", amount: "-1000", want: domain.CategoryInvestments},
		{name: "yield", txType: "", description: "Rendimento poupanca", amount: "3.21", want: domain.CategoryYields},
		{name: "pix received", txType: "PIX RECEBIDO", description: "MARIA", amount: "50", want: domain.CategoryPIXReceived},
		{name: "pix sent", txType: "Pix enviado", description: "MARIA", amount: "-50", want: domain.CategoryPIXSent},
		{name: "ted counts as transfer", txType: "TED", description: "", amount: "-10", want: domain.CategoryPIXSent},
		{name: "credit card", txType: "COMPRA CARTAO", description: "MERCADO", amount: "-20", want: domain.CategoryCreditCard},
		{name: "debit card", txType: "Debito de cartao", description: "PADARIA", amount: "-8", want: domain.CategoryDebitCard},
		{name: "automatic debit", txType: "DEBITO AUTOMATICO", description: "LUZ", amount: "-120", want: domain.CategoryAutomaticDebit},
		{name: "fee", txType: "TARIFA", description: "PACOTE", amount: "-30", want: domain.CategoryFees},
		{name: "withdrawal", txType: "SAQUE", description: "ATM", amount: "-200", want: domain.CategoryWithdrawals},
		{name: "deposit", txType: "DEPOSITO", description: "ENVELOPE", amount: "200", want: domain.CategoryDeposits},
		{name: "other", txType: "COMPRA", description: "LOJA", amount: "-5", want: domain.CategoryOther},
		{name: "investments before pix", txType: "PIX", description: "RESGATE CDB", amount: "500", want: domain.CategoryInvestments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.Categorize(tt.txType, tt.description, decimal.RequireFromString(tt.amount))
			if got != tt.want {
				t.Errorf("Categorize(%q, %q) = %q, want %q", tt.txType, tt.description, got, tt.want)
			}
		})
	}
}

func TestKeyword_Reversals(t *testing.T) {
	k := NewKeyword(mustRules(t))

	tests := []struct {
		name string
		text string
		want domain.Category
	}{
		{name: "investment reversal", text: "ESTORNO APLICACAO", want: domain.CategoryInvestments},
		{name: "credit card reversal", text: "ESTORNO COMPRA CARTAO", want: domain.CategoryCreditCard},
		{name: "debit card reversal", text: "EST DEBITO CARTAO", want: domain.CategoryDebitCard},
		{name: "automatic debit reversal", text: "ESTORNO DEBITO AUTOMATICO", want: domain.CategoryAutomaticDebit},
		{name: "generic reversal", text: "ESTORNO PIX", want: domain.CategoryReversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := k.Categorize(tt.text, "", decimal.NewFromInt(10)); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewRules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string][]string)
		wantKey string
	}{
		{
			name:    "missing rule set",
			mutate:  func(m map[string][]string) { delete(m, "fees") },
			wantKey: "categories.fees",
		},
		{
			name:    "unknown rule set",
			mutate:  func(m map[string][]string) { m["groceries"] = []string{"MERCADO"} },
			wantKey: "categories.groceries",
		},
		{
			name:    "blank keyword",
			mutate:  func(m map[string][]string) { m["deposits"] = []string{"DEPOSITO", "  "} },
			wantKey: "categories.deposits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := config.DefaultCategories()
			tt.mutate(raw)

			_, err := NewRules(raw)
			ce, ok := err.(*config.ConfigError)
			if !ok {
				t.Fatalf("expected *config.ConfigError, got %T (%v)", err, err)
			}
			if ce.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", ce.Key, tt.wantKey)
			}
		})
	}
}

func TestNewRules_EmptyListAllowed(t *testing.T) {
	raw := config.DefaultCategories()
	raw["withdrawals"] = nil

	rules, err := NewRules(raw)
	if err != nil {
		t.Fatalf("NewRules() error = %v", err)
	}
	if rules.Matches(Withdrawals, "SAQUE") {
		t.Error("empty rule set must not match")
	}
}

func TestRules_KeywordsAreCaseInsensitive(t *testing.T) {
	raw := config.DefaultCategories()
	raw["fees"] = []string{"tarifa"}

	rules, err := NewRules(raw)
	if err != nil {
		t.Fatal(err)
	}
	k := NewKeyword(rules)
	if got := k.Categorize("Tarifa pacote", "", decimal.NewFromInt(-1)); got != domain.CategoryFees {
		t.Errorf("Categorize() = %q, want %q", got, domain.CategoryFees)
	}
}
