package notionexport

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
)

type mockNotion struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return &notionapi.Page{}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, filter)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	if m.DeletePageFunc != nil {
		return m.DeletePageFunc(ctx, pageID)
	}
	return nil
}

type mockEntryRepo struct {
	infra.LedgerRepository
	entries []*infra.LedgerEntryRow
}

func (m *mockEntryRepo) QueryEntriesByDateRange(ctx context.Context, accountID string, start, end time.Time) ([]*infra.LedgerEntryRow, error) {
	return m.entries, nil
}

func keyPage(id, key string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Entry Key": &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: key}},
			},
		},
	}
}

func testEntry(key, desc string) *infra.LedgerEntryRow {
	return &infra.LedgerEntryRow{
		EntryID:     "e-" + key,
		EntryKey:    key,
		AccountID:   "acc-1",
		EntryDate:   civil.Date{Year: 2025, Month: 1, Day: 5},
		Description: desc,
		Credit:      500000,
		Currency:    "IDR",
	}
}

func TestExportEntries(t *testing.T) {
	repo := &mockEntryRepo{entries: []*infra.LedgerEntryRow{
		testEntry("key-1", "TRANSFER MASUK"),
		testEntry("key-2", "BIAYA ADMIN"),
	}}

	var created []string
	var deleted []string

	notion := &mockNotion{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{
					keyPage("page-1", "key-1"),  // already mirrored
					keyPage("page-2", "stale"),  // no longer in range
				},
			}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			title := properties["Description"].(notionapi.TitleProperty)
			created = append(created, title.Title[0].Text.Content)
			return &notionapi.Page{}, nil
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			deleted = append(deleted, pageID)
			return nil
		},
	}

	result, err := ExportEntries(context.Background(), repo, notion, "db-1", "acc-1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		false)
	if err != nil {
		t.Fatalf("ExportEntries failed: %v", err)
	}

	if result.Created != 1 || result.Skipped != 1 || result.Deleted != 1 {
		t.Errorf("result = %+v, want created/skipped/deleted = 1/1/1", result)
	}
	if len(created) != 1 || created[0] != "BIAYA ADMIN" {
		t.Errorf("created pages = %v, want [BIAYA ADMIN]", created)
	}
	if len(deleted) != 1 || deleted[0] != "page-2" {
		t.Errorf("deleted pages = %v, want [page-2]", deleted)
	}
}

func TestExportEntries_DryRun(t *testing.T) {
	repo := &mockEntryRepo{entries: []*infra.LedgerEntryRow{
		testEntry("key-1", "TRANSFER MASUK"),
	}}

	notion := &mockNotion{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			t.Error("dry run must not create pages")
			return &notionapi.Page{}, nil
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			t.Error("dry run must not delete pages")
			return nil
		},
	}

	result, err := ExportEntries(context.Background(), repo, notion, "db-1", "acc-1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		true)
	if err != nil {
		t.Fatalf("ExportEntries failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}
}

func TestEntryToNotionProperties(t *testing.T) {
	entry := testEntry("key-1", "TRANSFER MASUK")
	entry.Reference = "0211/FTSCY/WS95051"

	props := EntryToNotionProperties(entry)

	title, ok := props["Description"].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "TRANSFER MASUK" {
		t.Errorf("Description property = %+v", props["Description"])
	}
	key, ok := props["Entry Key"].(notionapi.RichTextProperty)
	if !ok || key.RichText[0].Text.Content != "key-1" {
		t.Errorf("Entry Key property = %+v", props["Entry Key"])
	}
	credit, ok := props["Credit"].(notionapi.NumberProperty)
	if !ok || credit.Number != 500000 {
		t.Errorf("Credit property = %+v", props["Credit"])
	}
	if _, ok := props["Debit"]; ok {
		t.Error("zero debit should not emit a Debit property")
	}
	if _, ok := props["Reference"]; !ok {
		t.Error("Reference property missing")
	}
}
