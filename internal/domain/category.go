package domain

// Category is the system-assigned classification label of a transaction.
type Category string

const (
	CategoryInvestments      Category = "Investments"
	CategoryYields           Category = "Yields"
	CategoryPIXSent          Category = "PIX Sent"
	CategoryPIXReceived      Category = "PIX Received"
	CategoryCreditCard       Category = "Credit Card"
	CategoryDebitCard        Category = "Debit Card"
	CategoryAutomaticDebit   Category = "Automatic Debit"
	CategoryFees             Category = "Fees"
	CategoryWithdrawals      Category = "Withdrawals"
	CategoryDeposits         Category = "Deposits"
	CategoryReversal         Category = "Reversal"
	CategoryInternalTransfer Category = "Internal Transfer"
	CategoryOther            Category = "Other"
)

// AllCategories lists every label the core can assign, in report order.
var AllCategories = []Category{
	CategoryInvestments,
	CategoryYields,
	CategoryPIXSent,
	CategoryPIXReceived,
	CategoryCreditCard,
	CategoryDebitCard,
	CategoryAutomaticDebit,
	CategoryFees,
	CategoryWithdrawals,
	CategoryDeposits,
	CategoryReversal,
	CategoryInternalTransfer,
	CategoryOther,
}

// ParseCategory maps a label back to its Category. Unknown labels report false.
func ParseCategory(label string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// IsTransferCandidate reports whether the label takes part in internal
// transfer matching.
func (c Category) IsTransferCandidate() bool {
	return c == CategoryPIXSent || c == CategoryPIXReceived || c == CategoryInternalTransfer
}

func (c Category) String() string {
	return string(c)
}
