package categorizer

import (
	"fmt"
	"regexp"

	"github.com/dvloznov/ledger-consolidator/internal/config"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
)

// InstitutionCategorizer is a per-institution override. When it reports ok,
// its label wins and the keyword pass is skipped for that row.
type InstitutionCategorizer interface {
	Categorize(tx *domain.Transaction) (category domain.Category, ok bool)
}

// CardLabel forces "Credit Card" on rows whose account label or transaction
// type looks like a card posting.
type CardLabel struct {
	labels []*regexp.Regexp
	types  []*regexp.Regexp
}

// DefaultCardLabelPattern matches a 4-digit card prefix sub-account such as
// "1234 - JOAO S".
const DefaultCardLabelPattern = `^\d{4} - .+`

// NewCardLabel compiles the label and type patterns.
func NewCardLabel(labelPatterns, typePatterns []string) (*CardLabel, error) {
	c := &CardLabel{}
	for _, p := range labelPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("NewCardLabel: label pattern %q: %w", p, err)
		}
		c.labels = append(c.labels, re)
	}
	for _, p := range typePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("NewCardLabel: type pattern %q: %w", p, err)
		}
		c.types = append(c.types, re)
	}
	return c, nil
}

func (c *CardLabel) Categorize(tx *domain.Transaction) (domain.Category, bool) {
	for _, re := range c.labels {
		if re.MatchString(tx.AccountLabel) {
			return domain.CategoryCreditCard, true
		}
	}
	for _, re := range c.types {
		if re.MatchString(tx.Type) {
			return domain.CategoryCreditCard, true
		}
	}
	return "", false
}

// Fixed assigns the same label to every row of an institution, e.g. a card
// statement where every line is card spend.
type Fixed struct {
	Category domain.Category
}

func (f Fixed) Categorize(*domain.Transaction) (domain.Category, bool) {
	return f.Category, true
}

// Chain tries strategies in order and returns the first label reported.
type Chain []InstitutionCategorizer

func (c Chain) Categorize(tx *domain.Transaction) (domain.Category, bool) {
	for _, s := range c {
		if cat, ok := s.Categorize(tx); ok {
			return cat, true
		}
	}
	return "", false
}

// FromConfig builds the override for one configured institution. A fixed
// category takes precedence over card patterns.
func FromConfig(ic config.InstitutionConfig) (InstitutionCategorizer, error) {
	key := "institutions." + ic.Institution

	var chain Chain
	if ic.FixedCategory != "" {
		cat, ok := domain.ParseCategory(ic.FixedCategory)
		if !ok {
			return nil, &config.ConfigError{Key: key, Reason: fmt.Sprintf("unknown fixed_category %q", ic.FixedCategory)}
		}
		chain = append(chain, Fixed{Category: cat})
	}

	if len(ic.CardLabelPatterns) > 0 || len(ic.CardTypePatterns) > 0 {
		card, err := NewCardLabel(ic.CardLabelPatterns, ic.CardTypePatterns)
		if err != nil {
			return nil, &config.ConfigError{Key: key, Reason: err.Error()}
		}
		chain = append(chain, card)
	}

	if len(chain) == 0 {
		return nil, &config.ConfigError{Key: key, Reason: "no override configured"}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
