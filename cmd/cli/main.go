package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/adityar/mutasi-ingest/internal/extract"
	infraBQ "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/logger"
	"github.com/adityar/mutasi-ingest/internal/objectstore"
	"github.com/adityar/mutasi-ingest/internal/pipeline"
	"github.com/adityar/mutasi-ingest/internal/recognize"
	"github.com/adityar/mutasi-ingest/internal/statement"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(log)
	case "ingest":
		runIngest(log)
	case "upload":
		runUpload(log)
	case "entries":
		runEntries(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Mutasi Ingest CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Parse a local statement file and print the result as JSON (no persistence)")
	fmt.Println("  ingest    Run the full ingestion pipeline over a local statement file")
	fmt.Println("  upload    Upload a statement file to GCS and record it")
	fmt.Println("  entries   List persisted ledger entries for an account and date range")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runParse is the offline path: extract (or recognize), parse, finalize,
// print. Nothing touches BigQuery.
func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement file (required)")
	mimeType := fs.String("mime-type", "", "Declared MIME type of the file")
	useRecognition := fs.Bool("recognize", false, "Force vision recognition instead of raw text extraction")
	currency := fs.String("currency", "IDR", "Currency code for parsed amounts")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read file")
	}

	var text string
	if *useRecognition {
		recognizer := recognize.NewGeminiRecognizer()
		text, err = recognizer.Recognize(context.Background(), data, *mimeType)
		if err != nil {
			log.Fatal().Err(err).Msg("Recognition failed")
		}
	} else {
		text = extract.Extract(data)
		if text == "" {
			log.Fatal().Msg("No text layer found; retry with --recognize")
		}
	}

	st := statement.Finalize(statement.Parse(text, statement.ParseOptions{Currency: *currency}))

	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement file (required)")
	accountID := fs.String("account-id", "", "Target ledger account (required)")
	currency := fs.String("currency", "IDR", "Currency code for parsed amounts")
	mimeType := fs.String("mime-type", "", "Declared MIME type of the file")
	forceRecognition := fs.Bool("recognize", false, "Force vision recognition instead of raw text extraction")
	project := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	if *accountID == "" {
		log.Fatal().Msg("Error: --account-id is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project or GOOGLE_CLOUD_PROJECT is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read file")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	ingestor := pipeline.NewIngestor(repo, recognize.NewGeminiRecognizer(), extract.Extract)

	result, err := ingestor.Ingest(ctx, &pipeline.State{
		AccountID:        *accountID,
		Currency:         *currency,
		MIMEType:         *mimeType,
		ForceRecognition: *forceRecognition,
		Raw:              data,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	log.Info().
		Str("document_id", result.DocumentID).
		Str("source", result.Source).
		Int("transactions", len(result.Statement.Transactions)).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Msg("Ingestion completed")

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement file (required)")
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name")
	accountID := fs.String("account-id", "", "Target ledger account (required)")
	currency := fs.String("currency", "IDR", "Currency code")
	mimeType := fs.String("mime-type", "application/pdf", "MIME type of the file")
	project := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket or GCS_BUCKET is required")
	}
	if *accountID == "" {
		log.Fatal().Msg("Error: --account-id is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project or GOOGLE_CLOUD_PROJECT is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open file")
	}
	defer f.Close()

	ctx := context.Background()

	documentID := uuid.NewString()
	objectName := fmt.Sprintf("statements/%s/%s-%s", time.Now().Format("2006/01/02"), documentID, filepath.Base(*file))

	store := objectstore.NewGCSStore()
	gcsURI, err := store.Upload(ctx, *bucket, objectName, *mimeType, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	doc := &infraBQ.StatementDocumentRow{
		DocumentID:       documentID,
		AccountID:        *accountID,
		GCSURI:           gcsURI,
		OriginalFilename: filepath.Base(*file),
		FileMimeType:     *mimeType,
		Currency:         *currency,
		UploadTS:         time.Now(),
		ParsingStatus:    "PENDING",
	}
	if err := repo.InsertDocument(ctx, doc); err != nil {
		log.Fatal().Err(err).Msg("Failed to record document")
	}

	log.Info().
		Str("document_id", documentID).
		Str("gcs_uri", gcsURI).
		Msg("Document uploaded")
}

func runEntries(log zerolog.Logger) {
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	accountID := fs.String("account-id", "", "Ledger account (required)")
	startDateStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	project := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID")
	fs.Parse(os.Args[2:])

	if *accountID == "" {
		log.Fatal().Msg("Error: --account-id is required")
	}
	if *startDateStr == "" || *endDateStr == "" {
		log.Fatal().Msg("Error: --start-date and --end-date are required")
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

	ctx := context.Background()

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	entries, err := repo.QueryEntriesByDateRange(ctx, *accountID, startDate, endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query entries")
	}

	out, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(out))
}
