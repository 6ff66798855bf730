package categorizer

import (
	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
)

// Registry composes per-institution overrides with the keyword fallback.
type Registry struct {
	keyword   *Keyword
	overrides map[string]InstitutionCategorizer
}

// Result summarizes one categorization pass.
type Result struct {
	Counts     map[domain.Category]int
	Overridden int // rows labelled by an institution strategy
}

// NewRegistry returns a registry with no overrides.
func NewRegistry(keyword *Keyword) *Registry {
	return &Registry{
		keyword:   keyword,
		overrides: make(map[string]InstitutionCategorizer),
	}
}

// NewRegistryFromConfig builds rules and overrides from cfg.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	rules, err := NewRules(cfg.CategoryRules())
	if err != nil {
		return nil, err
	}

	r := NewRegistry(NewKeyword(rules))
	for _, ic := range cfg.Institutions {
		s, err := FromConfig(ic)
		if err != nil {
			return nil, err
		}
		r.Register(ic.Institution, s)
	}
	return r, nil
}

// Register installs the override for an institution, replacing any previous one.
func (r *Registry) Register(institution string, s InstitutionCategorizer) {
	r.overrides[institution] = s
}

// Categorize labels a single row.
func (r *Registry) Categorize(tx *domain.Transaction) (domain.Category, bool) {
	if s, ok := r.overrides[tx.Institution]; ok {
		if cat, ok := s.Categorize(tx); ok {
			return cat, true
		}
	}
	return r.keyword.Categorize(tx.Type, tx.Description, tx.Amount), false
}

// Apply sets CategoryAuto on every row of the ledger.
func (r *Registry) Apply(ledger []*domain.Transaction) Result {
	res := Result{Counts: make(map[domain.Category]int)}
	for _, tx := range ledger {
		cat, overridden := r.Categorize(tx)
		tx.CategoryAuto = cat
		res.Counts[cat]++
		if overridden {
			res.Overridden++
		}
	}
	return res
}
