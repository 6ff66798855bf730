package categorizer

import (
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

// keywordOrder is the priority of the generic pass; first match wins.
var keywordOrder = []RuleSet{
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

// reversalTargets decide what a reversal applies to, in priority order.
var reversalTargets = []RuleSet{
	Investments,
	CreditCard,
	DebitCard,
	AutomaticDebit,
}

var ruleSetCategory = map[RuleSet]domain.Category{
	Investments:    domain.CategoryInvestments,
	Yields:         domain.CategoryYields,
	CreditCard:     domain.CategoryCreditCard,
	DebitCard:      domain.CategoryDebitCard,
	AutomaticDebit: domain.CategoryAutomaticDebit,
	Fees:           domain.CategoryFees,
	Withdrawals:    domain.CategoryWithdrawals,
	Deposits:       domain.CategoryDeposits,
}

// Keyword is the generic keyword categorizer. It is a pure function of its
// inputs and never fails.
type Keyword struct {
	rules *Rules
}

// NewKeyword returns a keyword categorizer over rules.
func NewKeyword(rules *Rules) *Keyword {
	return &Keyword{rules: rules}
}

// Categorize labels a row from its type, description and signed amount.
func (k *Keyword) Categorize(txType, description string, amount decimal.Decimal) domain.Category {
	text := domain.SearchText(txType, description)

	if k.rules.Matches(Reversals, text) {
		for _, rs := range reversalTargets {
			if k.rules.Matches(rs, text) {
				return ruleSetCategory[rs]
			}
		}
		return domain.CategoryReversal
	}

	for _, rs := range keywordOrder {
		if !k.rules.Matches(rs, text) {
			continue
		}
		if rs == PIXTransfer {
			if amount.IsPositive() {
				return domain.CategoryPIXReceived
			}
			return domain.CategoryPIXSent
		}
		return ruleSetCategory[rs]
	}

	return domain.CategoryOther
}
