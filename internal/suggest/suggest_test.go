package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// MockModelClient is a mock implementation of ModelClient
type MockModelClient struct {
	GenerateFunc func(ctx context.Context, model, prompt string) (string, error)
}

func (m *MockModelClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, model, prompt)
	}
	return "[]", nil
}

func row(id string, cat domain.Category, desc string) *domain.Transaction {
	return &domain.Transaction{
		ID:           id,
		Type:         "COMPRA",
		Description:  desc,
		Amount:       decimal.RequireFromString("-42.5"),
		CategoryAuto: cat,
	}
}

func TestSuggester_Suggest(t *testing.T) {
	ledger := []*domain.Transaction{
		row("a", domain.CategoryOther, "NETFLIX.COM"),
		row("b", domain.CategoryFees, "TARIFA PACOTE"),
		row("c", domain.CategoryOther, "PADARIA"),
		row("d", domain.CategoryOther, "POSTO SHELL"),
	}

	var gotModel, gotPrompt string
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, model, prompt string) (string, error) {
			gotModel, gotPrompt = model, prompt
			return "```json\n" + `[
				{"id": "a", "category": "Automatic Debit", "reason": "streaming subscription"},
				{"id": "a", "category": "Fees", "reason": "duplicate"},
				{"id": "b", "category": "Fees", "reason": "not asked"},
				{"id": "c", "category": "Internal Transfer", "reason": "not allowed"},
				{"id": "d", "category": "Groceries", "reason": "unknown label"},
				{"id": "zz", "category": "Fees", "reason": "unknown row"}
			]` + "\n```", nil
		},
	}

	s := NewSuggester(client, "", 0)
	got, err := s.Suggest(context.Background(), ledger)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	want := []Suggestion{{TransactionID: "a", Category: domain.CategoryAutomaticDebit, Reason: "streaming subscription"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}

	if gotModel != DefaultModelName {
		t.Errorf("model = %q, want %q", gotModel, DefaultModelName)
	}
	for _, wantText := range []string{"NETFLIX.COM", "PADARIA", "POSTO SHELL", "-42.50", "  - Credit Card"} {
		if !strings.Contains(gotPrompt, wantText) {
			t.Errorf("prompt missing %q", wantText)
		}
	}
	for _, notWant := range []string{"TARIFA PACOTE", "  - Internal Transfer", "  - Other"} {
		if strings.Contains(gotPrompt, notWant) {
			t.Errorf("prompt should not contain %q", notWant)
		}
	}

	for _, tx := range ledger {
		if tx.ID != "b" && tx.CategoryAuto != domain.CategoryOther {
			t.Errorf("Suggest() mutated category of %s to %q", tx.ID, tx.CategoryAuto)
		}
	}
}

func TestSuggester_NoCandidates(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, model, prompt string) (string, error) {
			t.Fatal("model should not be called without candidates")
			return "", nil
		},
	}

	got, err := NewSuggester(client, "m", 10).Suggest(context.Background(), []*domain.Transaction{row("a", domain.CategoryFees, "TARIFA")})
	if err != nil || got != nil {
		t.Errorf("Suggest() = %v, %v; want nil, nil", got, err)
	}
}

func TestSuggester_Errors(t *testing.T) {
	ledger := []*domain.Transaction{row("a", domain.CategoryOther, "X")}

	boom := errors.New("quota exceeded")
	s := NewSuggester(&MockModelClient{
		GenerateFunc: func(ctx context.Context, model, prompt string) (string, error) { return "", boom },
	}, "m", 10)
	if _, err := s.Suggest(context.Background(), ledger); !errors.Is(err, boom) {
		t.Errorf("Suggest() error = %v, want %v", err, boom)
	}

	s = NewSuggester(&MockModelClient{
		GenerateFunc: func(ctx context.Context, model, prompt string) (string, error) { return "I cannot help", nil },
	}, "m", 10)
	if _, err := s.Suggest(context.Background(), ledger); err == nil {
		t.Error("Suggest() should fail on a non-JSON reply")
	}
}

func TestCandidates_Limit(t *testing.T) {
	ledger := []*domain.Transaction{
		row("a", domain.CategoryOther, ""),
		row("b", domain.CategoryOther, ""),
		row("c", domain.CategoryOther, ""),
	}

	got := Candidates(ledger, 2)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Candidates() = %v, want first two rows", got)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"id":"a"}]`, `[{"id":"a"}]`},
		{"fenced", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1]\n```", "[1]"},
		{"surrounding text", "Here you go: [1] hope it helps", "[1]"},
		{"single line fence", "```", "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
