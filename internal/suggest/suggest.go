// Package suggest asks a generative model for category suggestions on rows
// the keyword rules left as Other. Suggestions are advisory: they are
// reported alongside the ledger and never written to a category field.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-consolidator/internal/domain"
)

// DefaultMaxRows bounds the number of rows sent in one prompt.
const DefaultMaxRows = 200

// Suggestion is a proposed category for one ledger row.
type Suggestion struct {
	TransactionID string          `json:"id"`
	Category      domain.Category `json:"category"`
	Reason        string          `json:"reason,omitempty"`
}

// Suggester builds prompts for uncategorized rows and validates the replies.
type Suggester struct {
	client  ModelClient
	model   string
	maxRows int
}

// NewSuggester returns a Suggester. Empty model and non-positive maxRows fall
// back to the defaults.
func NewSuggester(client ModelClient, model string, maxRows int) *Suggester {
	if model == "" {
		model = DefaultModelName
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Suggester{client: client, model: model, maxRows: maxRows}
}

// Candidates returns the rows eligible for a suggestion, at most limit.
func Candidates(ledger []*domain.Transaction, limit int) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range ledger {
		if tx.CategoryAuto != domain.CategoryOther {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, tx)
	}
	return out
}

// Suggestable lists the categories the model may propose. Internal Transfer
// is decided by the detector alone and Other is not a suggestion.
func Suggestable() []domain.Category {
	var out []domain.Category
	for _, c := range domain.AllCategories {
		if c == domain.CategoryInternalTransfer || c == domain.CategoryOther {
			continue
		}
		out = append(out, c)
	}
	return out
}

type promptRow struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// BuildPrompt renders the instruction prompt for rows.
func BuildPrompt(rows []*domain.Transaction) (string, error) {
	items := make([]promptRow, 0, len(rows))
	for _, tx := range rows {
		items = append(items, promptRow{
			ID:          tx.ID,
			Type:        tx.Type,
			Description: tx.Description,
			Amount:      tx.Amount.StringFixed(2),
		})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: encoding rows: %w", err)
	}

	var b strings.Builder
	b.WriteString("You categorize Brazilian bank statement transactions.\n\n")
	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range Suggestable() {
		b.WriteString("  - " + c.String() + "\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. Category must be EXACTLY one of the names above (case-sensitive).\n")
	b.WriteString("2. Positive amounts are money IN, negative amounts are money OUT.\n")
	b.WriteString("3. Skip a transaction entirely if no category fits.\n")
	b.WriteString("4. \"reason\" is a short phrase, at most ten words.\n\n")
	b.WriteString("Transactions:\n")
	b.Write(data)
	b.WriteString("\n\nReturn ONLY a raw JSON array of objects with fields \"id\", \"category\" and \"reason\".\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String(), nil
}

// Suggest proposes categories for the Other rows of ledger. Replies naming
// unknown rows or categories outside Suggestable are dropped.
func (s *Suggester) Suggest(ctx context.Context, ledger []*domain.Transaction) ([]Suggestion, error) {
	rows := Candidates(ledger, s.maxRows)
	if len(rows) == 0 {
		return nil, nil
	}

	prompt, err := BuildPrompt(rows)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Generate(ctx, s.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("Suggest: %w", err)
	}

	return parseSuggestions(raw, rows)
}

type replyItem struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

func parseSuggestions(raw string, rows []*domain.Transaction) ([]Suggestion, error) {
	clean := cleanModelJSON(raw)

	var items []replyItem
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("Suggest: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	asked := make(map[string]bool, len(rows))
	for _, tx := range rows {
		asked[tx.ID] = true
	}
	allowed := make(map[domain.Category]bool)
	for _, c := range Suggestable() {
		allowed[c] = true
	}

	seen := make(map[string]bool, len(items))
	var out []Suggestion
	for _, it := range items {
		c, ok := domain.ParseCategory(strings.TrimSpace(it.Category))
		if !ok || !allowed[c] || !asked[it.ID] || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, Suggestion{
			TransactionID: it.ID,
			Category:      c,
			Reason:        strings.TrimSpace(it.Reason),
		})
	}
	return out, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
