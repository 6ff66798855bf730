// Package ingest loads normalized statement batches produced by the external
// per-institution parsers.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order; statements from Brazilian banks are day-first.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02/01/06"}

// DecodeStats describes rows skipped while decoding a batch.
type DecodeStats struct {
	Rows     int
	Dropped  int
	Problems []string
}

// DecodeBatch parses one batch document. Rows with an unusable date or amount
// are skipped and reported in the stats; only a structurally invalid document
// is an error.
func DecodeBatch(data []byte, source string) (*domain.Batch, DecodeStats, error) {
	var stats DecodeStats

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, stats, fmt.Errorf("DecodeBatch: %s: decoding JSON: %w", source, err)
	}

	institution, err := getStringField(raw, "institution", false)
	if err != nil {
		return nil, stats, fmt.Errorf("DecodeBatch: %s: %w", source, err)
	}

	batch := &domain.Batch{
		Institution: strings.TrimSpace(institution),
		Source:      source,
	}

	opening, err := getOptionalDecimalField(raw, "opening_balance")
	if err != nil {
		return nil, stats, fmt.Errorf("DecodeBatch: %s: %w", source, err)
	}
	batch.OpeningBalance = opening

	txAny, ok := raw["transactions"]
	if !ok {
		return nil, stats, fmt.Errorf("DecodeBatch: %s: missing 'transactions' key", source)
	}
	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, stats, fmt.Errorf("DecodeBatch: %s: 'transactions' is %T, want array", source, txAny)
	}

	batch.Transactions = make([]*domain.Transaction, 0, len(txSlice))
	for i, item := range txSlice {
		stats.Rows++

		tx, err := decodeTransaction(item, batch.Institution)
		if err != nil {
			stats.Dropped++
			stats.Problems = append(stats.Problems, fmt.Sprintf("transaction %d: %v", i, err))
			continue
		}
		batch.Transactions = append(batch.Transactions, tx)
	}

	return batch, stats, nil
}

func decodeTransaction(item interface{}, batchInstitution string) (*domain.Transaction, error) {
	obj, ok := item.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("element is %T, want object", item)
	}

	institution, err := getStringField(obj, "institution", false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(institution) == "" {
		institution = batchInstitution
	}
	if strings.TrimSpace(institution) == "" {
		return nil, fmt.Errorf("no institution on row or batch")
	}

	effective, err := getDateField(obj, "date")
	if err != nil {
		return nil, err
	}
	accounting, err := getDateField(obj, "accounting_date")
	if err != nil {
		return nil, err
	}
	if !effective.IsValid() && !accounting.IsValid() {
		return nil, fmt.Errorf("missing date")
	}

	amount, err := getOptionalDecimalField(obj, "amount")
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, fmt.Errorf("missing required field %q", "amount")
	}

	tx := &domain.Transaction{
		EffectiveDate:  effective,
		AccountingDate: accounting,
		Institution:    institution,
		Amount:         *amount,
	}
	for key, dst := range map[string]*string{
		"id":            &tx.ID,
		"account_label": &tx.AccountLabel,
		"type":          &tx.Type,
		"description":   &tx.Description,
	} {
		if *dst, err = getStringField(obj, key, false); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	case json.Number:
		// account numbers sometimes arrive unquoted
		return val.String(), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getDateField returns the zero (invalid) date when the field is absent or empty.
func getDateField(m map[string]interface{}, key string) (civil.Date, error) {
	s, err := getStringField(m, key, false)
	if err != nil {
		return civil.Date{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, nil
	}
	if len(s) > 10 {
		// tolerate timestamps such as 2024-01-10T00:00:00
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return civil.DateOf(t), nil
		}
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("field %q: invalid date %q", key, s)
}

func getOptionalDecimalField(m map[string]interface{}, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid number %q", key, val)
		}
		return &d, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		d, err := ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or string", key, v)
	}
}

// ParseAmount parses "1234.56", "-1234.56" or the Brazilian "1.234,56" form.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
