package notionexport

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/logger"
)

// BatchSize is the number of entries logged per progress batch.
const BatchSize = 100

// ExportResult summarizes one export run.
type ExportResult struct {
	Created int
	Skipped int
	Deleted int
}

// ExportEntries mirrors the ledger entries of one account and date range
// into the target Notion database. Entries whose key already exists in
// Notion are skipped; stale pages whose key is no longer in the ledger are
// archived. With dryRun set, the run only logs what it would do.
func ExportEntries(ctx context.Context, repo infra.LedgerRepository, notion NotionService, notionDBID, accountID string, startDate, endDate time.Time, dryRun bool) (*ExportResult, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("account_id", accountID).
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting ledger export to Notion")

	entries, err := repo.QueryEntriesByDateRange(ctx, accountID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("ExportEntries: querying entries: %w", err)
	}

	log.Info().Int("entry_count", len(entries)).Msg("Retrieved ledger entries")

	validKeys := make(map[string]bool, len(entries))
	for _, entry := range entries {
		validKeys[entry.EntryKey] = true
	}

	pages, err := queryAllNotionPages(ctx, notion, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("ExportEntries: querying Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existingKeys := make(map[string]bool, len(pages))
	result := &ExportResult{}

	for _, page := range pages {
		key := extractEntryKey(page)
		if key != "" && validKeys[key] {
			existingKeys[key] = true
			continue
		}

		// Stale page: no key, or the ledger no longer has this entry in
		// range.
		if dryRun {
			log.Info().
				Str("entry_key", key).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			result.Deleted++
			continue
		}
		if err := notion.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("entry_key", key).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		result.Deleted++
	}

	for i, entry := range entries {
		if i%BatchSize == 0 {
			log.Info().Int("processed", i).Int("total", len(entries)).Msg("Export progress")
		}

		if existingKeys[entry.EntryKey] {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("entry_key", entry.EntryKey).
				Str("description", entry.Description).
				Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		props := EntryToNotionProperties(entry)
		if _, err := notion.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().
				Err(err).
				Str("entry_key", entry.EntryKey).
				Msg("Failed to create Notion page")
			continue
		}
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("deleted", result.Deleted).
		Msg("Ledger export completed")

	return result, nil
}

// queryAllNotionPages pages through the full database contents.
func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}

		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return pages, nil
}
