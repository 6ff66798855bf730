// Package config loads the consolidator's configuration.
//
// A Config is built once by Load and then only read. Components take the
// parts they need at construction time; nothing writes back into it.
package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the parsed application configuration.
type Config struct {
	User            UserConfig
	Processing      ProcessingConfig
	Categories      map[string][]string
	OpeningBalances []OpeningBalance
	Institutions    []InstitutionConfig
	Inputs          []string
	Ingest          IngestConfig
	Export          ExportConfig
	BigQuery        BigQueryConfig
	Elasticsearch   ElasticsearchConfig
	Notion          NotionConfig
	AI              AIConfig
	Logging         LoggingConfig
}

// UserConfig identifies the account owner for transfer detection.
type UserConfig struct {
	Name       string
	NationalID string
}

// ProcessingConfig holds the transfer matching parameters.
type ProcessingConfig struct {
	ValueTolerance          decimal.Decimal
	DayWindowDays           int
	GenericTransferPatterns []string
}

// OpeningBalance is the configured starting balance of one institution.
type OpeningBalance struct {
	Institution string
	Amount      decimal.Decimal
}

// InstitutionConfig describes the categorization override of one institution.
type InstitutionConfig struct {
	Institution       string
	CardLabelPatterns []string
	CardTypePatterns  []string
	FixedCategory     string
}

// IngestConfig controls concurrent batch loading.
type IngestConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ExportConfig lists file and bucket destinations for the final ledger.
type ExportConfig struct {
	JSONPath  string
	CSVPath   string
	GCSBucket string
	GCSPrefix string
}

// BigQueryConfig enables persistence of ledger rows and consolidation runs.
type BigQueryConfig struct {
	Enabled   bool
	ProjectID string
	DatasetID string
}

// ElasticsearchConfig enables indexing of the final ledger.
type ElasticsearchConfig struct {
	Addresses []string
	Index     string
}

// NotionConfig enables the Notion database export.
type NotionConfig struct {
	Enabled    bool
	Token      string
	DatabaseID string
	DryRun     bool
}

// AIConfig enables model-based category suggestions for uncategorized rows.
type AIConfig struct {
	Enabled bool
	Model   string
	MaxRows int
}

// LoggingConfig selects log level and output format (console or json).
type LoggingConfig struct {
	Level  string
	Format string
}

// OpeningBalanceMap returns a fresh institution -> amount map.
func (c *Config) OpeningBalanceMap() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.OpeningBalances))
	for _, ob := range c.OpeningBalances {
		out[ob.Institution] = ob.Amount
	}
	return out
}

// CategoryRules returns a copy of the raw rule-set configuration.
func (c *Config) CategoryRules() map[string][]string {
	out := make(map[string][]string, len(c.Categories))
	for k, v := range c.Categories {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// DefaultGenericTransferPatterns are bank-issued transfer phrases that carry
// no counterparty information.
var DefaultGenericTransferPatterns = []string{
	"TRANSFERENCIA PIX",
	"TRANSF ENVIADA PIX",
	"TRANSF RECEBIDA PIX",
	"PIX RECEBIDO",
	"PIX ENVIADO",
}

// DefaultCategories returns the stock keyword rule sets for Brazilian bank
// statements.
func DefaultCategories() map[string][]string {
	return map[string][]string{
		"reversals":       {"ESTORNO", "EST "},
		"investments":     {"OUROCAP", "B3", "ATIVO", "ACOES", "FUNDO", "CDB", "LCI", "TESOURO", "APLICACAO", "RESGATE"},
		"yields":          {"CASHBACK", "REMUNERACAO", "RENDIMENTO", "JUROS", "DIVIDENDO", "JSCP", "SALARIO", "ORDEM BANC", "PROVENTO", "FOLHA"},
		"pix_transfer":    {"PIX", "TRANSFERENCIA", "TED", "DOC"},
		"credit_card":     {"CARTAO CREDITO", "CREDITO CARTAO", "COMPRA CARTAO"},
		"debit_card":      {"CARTAO DEBITO", "DEBITO CARTAO", "DEBITO DE CARTAO"},
		"automatic_debit": {"DEBITO AUTOMATICO"},
		"fees":            {"TARIFA", "TAXA", "IOF", "ANUIDADE", "MANUTENCAO"},
		"withdrawals":     {"SAQUE", "RETIRADA"},
		"deposits":        {"DEPOSITO", "CREDITO EM CONTA"},
	}
}
