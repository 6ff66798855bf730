package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the Notion ledger database.
const (
	PropDescription        = "Description"
	PropDate               = "Date"
	PropAccountingDate     = "Accounting Date"
	PropInstitution        = "Institution"
	PropAccount            = "Account"
	PropType               = "Type"
	PropAmount             = "Amount"
	PropCategory           = "Category"
	PropManualCategory     = "Manual Category"
	PropNote               = "Note"
	PropBalanceInstitution = "Balance Institution"
	PropBalanceReal        = "Balance Real"
	PropTransactionID      = "Transaction ID"
	PropRunID              = "Run ID"
)

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: s,
				},
			},
		},
	}
}

func dateProperty(d civil.Date) notionapi.DateProperty {
	start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &start,
		},
	}
}

func numberProperty(d decimal.Decimal) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Number: d.InexactFloat64(),
	}
}

// TransactionToNotionProperties converts a ledger row to Notion page properties.
// The manual category and note are user-owned in Notion and only sent when
// withManual is set, which the sync does for newly created pages.
func TransactionToNotionProperties(runID string, tx *domain.Transaction, withManual bool) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Description,
					},
				},
			},
		},
		PropDate:               dateProperty(tx.EffectiveDate),
		PropAccountingDate:     dateProperty(tx.AccountingDate),
		PropAmount:             numberProperty(tx.Amount),
		PropBalanceInstitution: numberProperty(tx.BalanceInstitution),
		PropBalanceReal:        numberProperty(tx.BalanceReal),
		PropTransactionID:      richText(tx.ID),
		PropRunID:              richText(runID),
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.CategoryAuto.String(),
			},
		},
	}

	if tx.Institution != "" {
		props[PropInstitution] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Institution,
			},
		}
	}
	if tx.AccountLabel != "" {
		props[PropAccount] = richText(tx.AccountLabel)
	}
	if tx.Type != "" {
		props[PropType] = richText(tx.Type)
	}

	if withManual {
		if tx.CategoryManual != "" {
			props[PropManualCategory] = notionapi.SelectProperty{
				Select: notionapi.Option{
					Name: tx.CategoryManual,
				},
			}
		}
		if tx.NoteManual != "" {
			props[PropNote] = richText(tx.NoteManual)
		}
	}

	return props
}

// extractTransactionID returns the Transaction ID property of a page, or "".
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
		return rt.RichText[0].PlainText
	}
	return ""
}
