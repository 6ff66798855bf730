// Package categorizer assigns category labels to ledger rows using ordered
// keyword rule sets, with per-institution strategies that run first.
package categorizer

import (
	"sort"
	"strings"

	"github.com/dvloznov/ledger-consolidator/internal/config"
)

// RuleSet names one keyword list of the categorization configuration.
type RuleSet string

const (
	Reversals      RuleSet = "reversals"
	Investments    RuleSet = "investments"
	Yields         RuleSet = "yields"
	PIXTransfer    RuleSet = "pix_transfer"
	CreditCard     RuleSet = "credit_card"
	DebitCard      RuleSet = "debit_card"
	AutomaticDebit RuleSet = "automatic_debit"
	Fees           RuleSet = "fees"
	Withdrawals    RuleSet = "withdrawals"
	Deposits       RuleSet = "deposits"
)

// RuleSets lists every recognized rule set. All of them must be configured.
var RuleSets = []RuleSet{
	Reversals,
	Investments,
	Yields,
	PIXTransfer,
	CreditCard,
	DebitCard,
	AutomaticDebit,
	Fees,
	Withdrawals,
	Deposits,
}

// Rules is an immutable, enum-keyed set of upper-cased keywords.
type Rules struct {
	sets map[RuleSet][]string
}

// NewRules validates the raw rule-set configuration. A missing or unknown
// rule-set name, or a blank keyword, yields a *config.ConfigError.
func NewRules(raw map[string][]string) (*Rules, error) {
	known := make(map[RuleSet]bool, len(RuleSets))
	for _, rs := range RuleSets {
		known[rs] = true
	}

	var unknown []string
	for name := range raw {
		if !known[RuleSet(name)] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &config.ConfigError{
			Key:    "categories." + unknown[0],
			Reason: "unknown rule set",
		}
	}

	r := &Rules{sets: make(map[RuleSet][]string, len(RuleSets))}
	for _, rs := range RuleSets {
		keywords, ok := raw[string(rs)]
		if !ok {
			return nil, &config.ConfigError{
				Key:    "categories." + string(rs),
				Reason: "required rule set is missing",
			}
		}

		normalized := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			if strings.TrimSpace(kw) == "" {
				return nil, &config.ConfigError{
					Key:    "categories." + string(rs),
					Reason: "blank keyword",
				}
			}
			// Leading/trailing spaces are significant ("EST " must not match "ESTADO").
			normalized = append(normalized, strings.ToUpper(kw))
		}
		r.sets[rs] = normalized
	}

	return r, nil
}

// Keywords returns a copy of the keywords of one rule set.
func (r *Rules) Keywords(rs RuleSet) []string {
	return append([]string(nil), r.sets[rs]...)
}

// Matches reports whether any keyword of rs is a substring of text.
// text must already be upper-cased.
func (r *Rules) Matches(rs RuleSet, text string) bool {
	for _, kw := range r.sets[rs] {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
