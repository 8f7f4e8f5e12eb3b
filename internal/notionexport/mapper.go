package notionexport

import (
	"time"

	"github.com/jomei/notionapi"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
)

// EntryToNotionProperties converts a ledger entry row to the property set of
// the Ledger Entries database in Notion. "Entry Key" carries the dedup hash;
// the export loop uses it to skip entries already mirrored.
func EntryToNotionProperties(entry *infra.LedgerEntryRow) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: entry.Description,
					},
				},
			},
		},
		"Entry Key": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: entry.EntryKey,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						entry.EntryDate.Year,
						time.Month(entry.EntryDate.Month),
						entry.EntryDate.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
	}

	if entry.Debit != 0 {
		props["Debit"] = notionapi.NumberProperty{Number: entry.Debit}
	}
	if entry.Credit != 0 {
		props["Credit"] = notionapi.NumberProperty{Number: entry.Credit}
	}
	if entry.Balance.Valid {
		props["Balance"] = notionapi.NumberProperty{Number: entry.Balance.Float64}
	}

	if entry.Reference != "" {
		props["Reference"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: entry.Reference,
					},
				},
			},
		}
	}

	if entry.BranchCode != "" {
		props["Branch"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.BranchCode,
			},
		}
	}

	if entry.AccountID != "" {
		props["Account"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.AccountID,
			},
		}
	}

	if entry.Currency != "" {
		props["Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.Currency,
			},
		}
	}

	return props
}

// extractEntryKey reads the Entry Key rich text column back out of a Notion
// page. Returns "" when the column is missing or empty.
func extractEntryKey(page notionapi.Page) string {
	prop, ok := page.Properties["Entry Key"]
	if !ok {
		return ""
	}
	richText, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(richText.RichText) == 0 {
		return ""
	}
	return richText.RichText[0].PlainText
}
