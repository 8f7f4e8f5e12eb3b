package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	infraBQ "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/logger"
	"github.com/adityar/mutasi-ingest/internal/notionexport"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	accountID := flag.String("account-id", "", "Ledger account to export (required)")
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (or set NOTION_DB_ID env)")
	project := flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Notion")
	flag.Parse()

	if *accountID == "" {
		log.Fatal().Msg("Error: --account-id is required")
	}
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token or NOTION_TOKEN is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id or NOTION_DB_ID is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project or GOOGLE_CLOUD_PROJECT is required")
	}

	startDate, err := time.Parse("2006-01-02", *startDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --start-date")
	}
	endDate, err := time.Parse("2006-01-02", *endDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --end-date")
	}
	if endDate.Before(startDate) {
		log.Fatal().Msg("Error: --end-date must not be before --start-date")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	notionClient := notionexport.NewNotionClient(*notionToken)

	result, err := notionexport.ExportEntries(ctx, repo, notionClient, *notionDBID, *accountID, startDate, endDate, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("deleted", result.Deleted).
		Bool("dry_run", *dryRun).
		Msg("Export finished")
}
