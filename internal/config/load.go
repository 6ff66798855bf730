package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvConfigPath names the variable consulted when no path is passed to Load.
const EnvConfigPath = "LEDGER_CONFIG"

type rawConfig struct {
	User            rawUser             `mapstructure:"user"`
	Processing      rawProcessing       `mapstructure:"processing"`
	Categories      map[string][]string `mapstructure:"categories"`
	OpeningBalances []rawOpeningBalance `mapstructure:"opening_balances"`
	Institutions    []rawInstitution    `mapstructure:"institutions"`
	Inputs          []string            `mapstructure:"inputs"`
	Ingest          rawIngest           `mapstructure:"ingest"`
	Export          rawExport           `mapstructure:"export"`
	BigQuery        rawBigQuery         `mapstructure:"bigquery"`
	Elasticsearch   rawElasticsearch    `mapstructure:"elasticsearch"`
	Notion          rawNotion           `mapstructure:"notion"`
	AI              rawAI               `mapstructure:"ai"`
	Logging         rawLogging          `mapstructure:"logging"`
}

type rawUser struct {
	Name       string `mapstructure:"name"`
	NationalID string `mapstructure:"national_id"`
}

type rawProcessing struct {
	ValueTolerance          string   `mapstructure:"value_tolerance"`
	DayWindowDays           int      `mapstructure:"day_window_days"`
	GenericTransferPatterns []string `mapstructure:"generic_transfer_patterns"`
}

type rawOpeningBalance struct {
	Institution string `mapstructure:"institution"`
	Amount      string `mapstructure:"amount"`
}

type rawInstitution struct {
	Institution       string   `mapstructure:"institution"`
	CardLabelPatterns []string `mapstructure:"card_label_patterns"`
	CardTypePatterns  []string `mapstructure:"card_type_patterns"`
	FixedCategory     string   `mapstructure:"fixed_category"`
}

type rawIngest struct {
	Workers    int           `mapstructure:"workers"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type rawExport struct {
	JSONPath  string `mapstructure:"json_path"`
	CSVPath   string `mapstructure:"csv_path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

type rawBigQuery struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

type rawElasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
}

type rawNotion struct {
	Enabled    bool   `mapstructure:"enabled"`
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
	DryRun     bool   `mapstructure:"dry_run"`
}

type rawAI struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	MaxRows int    `mapstructure:"max_rows"`
}

type rawLogging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("user.name", "")
	v.SetDefault("user.national_id", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("processing.value_tolerance", "0.01")
	v.SetDefault("processing.day_window_days", 3)
	v.SetDefault("processing.generic_transfer_patterns", DefaultGenericTransferPatterns)
	v.SetDefault("ingest.workers", 5)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.retry_delay", "1s")
	v.SetDefault("export.gcs_prefix", "consolidated")
	v.SetDefault("bigquery.dataset_id", "finance")
	v.SetDefault("elasticsearch.index", "ledger")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.max_rows", 200)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration file at path (or $LEDGER_CONFIG when path is
// empty), applies LEDGER_ environment overrides and validates the result.
// Validation failures are returned as *ConfigError.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, newError("config", "no configuration file given (use --config or %s)", EnvConfigPath)
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}

	return fromViper(v)
}

// LoadBytes parses configuration from an in-memory document of the given
// type ("yaml", "json", "toml").
func LoadBytes(data []byte, configType string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("LoadBytes: parsing %s config: %w", configType, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("fromViper: unmarshal config: %w", err)
	}
	return raw.build()
}

func (r rawConfig) build() (*Config, error) {
	tolerance, err := decimal.NewFromString(strings.TrimSpace(r.Processing.ValueTolerance))
	if err != nil {
		return nil, newError("processing.value_tolerance", "not a decimal: %q", r.Processing.ValueTolerance)
	}
	if tolerance.IsNegative() {
		return nil, newError("processing.value_tolerance", "must not be negative")
	}
	if r.Processing.DayWindowDays < 0 {
		return nil, newError("processing.day_window_days", "must not be negative")
	}

	if len(r.Categories) == 0 {
		return nil, newError("categories", "section is missing")
	}

	cfg := &Config{
		User: UserConfig{
			Name:       strings.TrimSpace(r.User.Name),
			NationalID: strings.TrimSpace(r.User.NationalID),
		},
		Processing: ProcessingConfig{
			ValueTolerance:          tolerance,
			DayWindowDays:           r.Processing.DayWindowDays,
			GenericTransferPatterns: r.Processing.GenericTransferPatterns,
		},
		Categories: r.Categories,
		Inputs:     r.Inputs,
		Ingest: IngestConfig{
			Workers:    r.Ingest.Workers,
			MaxRetries: r.Ingest.MaxRetries,
			RetryDelay: r.Ingest.RetryDelay,
		},
		Export:        ExportConfig(r.Export),
		BigQuery:      BigQueryConfig(r.BigQuery),
		Elasticsearch: ElasticsearchConfig(r.Elasticsearch),
		Notion:        NotionConfig(r.Notion),
		AI:            AIConfig(r.AI),
		Logging:       LoggingConfig(r.Logging),
	}

	seen := make(map[string]bool)
	for i, ob := range r.OpeningBalances {
		key := fmt.Sprintf("opening_balances[%d]", i)
		name := strings.TrimSpace(ob.Institution)
		if name == "" {
			return nil, newError(key, "institution is required")
		}
		if seen[name] {
			return nil, newError(key, "duplicate institution %q", name)
		}
		seen[name] = true

		amount, err := decimal.NewFromString(strings.TrimSpace(ob.Amount))
		if err != nil {
			return nil, newError(key, "amount %q is not a decimal", ob.Amount)
		}
		cfg.OpeningBalances = append(cfg.OpeningBalances, OpeningBalance{Institution: name, Amount: amount})
	}

	for i, inst := range r.Institutions {
		name := strings.TrimSpace(inst.Institution)
		if name == "" {
			return nil, newError(fmt.Sprintf("institutions[%d]", i), "institution is required")
		}
		cfg.Institutions = append(cfg.Institutions, InstitutionConfig{
			Institution:       name,
			CardLabelPatterns: inst.CardLabelPatterns,
			CardTypePatterns:  inst.CardTypePatterns,
			FixedCategory:     strings.TrimSpace(inst.FixedCategory),
		})
	}

	if cfg.Ingest.Workers <= 0 {
		return nil, newError("ingest.workers", "must be positive")
	}
	if cfg.Ingest.MaxRetries < 0 {
		return nil, newError("ingest.max_retries", "must not be negative")
	}
	if cfg.BigQuery.Enabled && cfg.BigQuery.ProjectID == "" {
		return nil, newError("bigquery.project_id", "required when bigquery is enabled")
	}
	if cfg.Notion.Enabled && (cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "") {
		return nil, newError("notion", "token and database_id are required when notion is enabled")
	}

	return cfg, nil
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
