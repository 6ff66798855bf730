package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

const sampleYAML = `
user:
  name: Joao Silva
  national_id: "123.456.789-00"
processing:
  value_tolerance: 0.05
  day_window_days: 2
categories:
  reversals: [ESTORNO]
  investments: [CDB]
  yields: [RENDIMENTO]
  pix_transfer: [PIX]
  credit_card: [CARTAO CREDITO]
  debit_card: [CARTAO DEBITO]
  automatic_debit: [DEBITO AUTOMATICO]
  fees: [TARIFA]
  withdrawals: [SAQUE]
  deposits: [DEPOSITO]
opening_balances:
  - institution: Banco do Brasil
    amount: "1000.50"
  - institution: Itaú
    amount: 250
institutions:
  - institution: Itaú
    card_label_patterns: ['^\d{4} - .+']
  - institution: C6 Cartão
    fixed_category: Credit Card
inputs:
  - batches/bb.json
`

func TestLoadBytes(t *testing.T) {
	cfg, err := LoadBytes([]byte(sampleYAML), "yaml")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if cfg.User.Name != "Joao Silva" || cfg.User.NationalID != "123.456.789-00" {
		t.Errorf("unexpected user: %+v", cfg.User)
	}
	if !cfg.Processing.ValueTolerance.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("ValueTolerance = %s, want 0.05", cfg.Processing.ValueTolerance)
	}
	if cfg.Processing.DayWindowDays != 2 {
		t.Errorf("DayWindowDays = %d, want 2", cfg.Processing.DayWindowDays)
	}
	if diff := cmp.Diff(DefaultGenericTransferPatterns, cfg.Processing.GenericTransferPatterns); diff != "" {
		t.Errorf("GenericTransferPatterns mismatch (-want +got):\n%s", diff)
	}

	balances := cfg.OpeningBalanceMap()
	if !balances["Banco do Brasil"].Equal(decimal.RequireFromString("1000.50")) {
		t.Errorf("Banco do Brasil opening = %s", balances["Banco do Brasil"])
	}
	if !balances["Itaú"].Equal(decimal.NewFromInt(250)) {
		t.Errorf("Itaú opening = %s", balances["Itaú"])
	}

	if len(cfg.Institutions) != 2 || cfg.Institutions[1].FixedCategory != "Credit Card" {
		t.Errorf("unexpected institutions: %+v", cfg.Institutions)
	}
	if cfg.Ingest.Workers != 5 || cfg.Ingest.MaxRetries != 3 || cfg.Ingest.RetryDelay != time.Second {
		t.Errorf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if got := cfg.CategoryRules()["credit_card"]; len(got) != 1 || got[0] != "CARTAO CREDITO" {
		t.Errorf("credit_card rules = %v", got)
	}
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantKey string
	}{
		{
			name:    "missing categories",
			yaml:    "user:\n  name: X\n",
			wantKey: "categories",
		},
		{
			name:    "bad tolerance",
			yaml:    "processing:\n  value_tolerance: abc\ncategories:\n  fees: [TARIFA]\n",
			wantKey: "processing.value_tolerance",
		},
		{
			name:    "negative window",
			yaml:    "processing:\n  day_window_days: -1\ncategories:\n  fees: [TARIFA]\n",
			wantKey: "processing.day_window_days",
		},
		{
			name:    "duplicate opening balance",
			yaml:    "categories:\n  fees: [TARIFA]\nopening_balances:\n  - {institution: A, amount: 1}\n  - {institution: A, amount: 2}\n",
			wantKey: "opening_balances[1]",
		},
		{
			name:    "bigquery without project",
			yaml:    "categories:\n  fees: [TARIFA]\nbigquery:\n  enabled: true\n",
			wantKey: "bigquery.project_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml), "yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if ce.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", ce.Key, tt.wantKey)
			}
			if !IsConfigError(err) {
				t.Error("IsConfigError() = false")
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LEDGER_USER_NAME", "Maria Souza")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.User.Name != "Maria Souza" {
		t.Errorf("env override not applied: %q", cfg.User.Name)
	}
}

func TestLoad_NoPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	_, err := Load("")
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
