package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adityar/mutasi-ingest/internal/extract"
	infraBQ "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/jobs"
	"github.com/adityar/mutasi-ingest/internal/jobs/inmemory"
	"github.com/adityar/mutasi-ingest/internal/logger"
	"github.com/adityar/mutasi-ingest/internal/objectstore"
	"github.com/adityar/mutasi-ingest/internal/pipeline"
	"github.com/adityar/mutasi-ingest/internal/recognize"
)

func main() {
	_ = godotenv.Load()

	var (
		project = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT env)")
	)
	flag.Parse()

	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("GCP project is required: pass -project or set GOOGLE_CLOUD_PROJECT")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	store := objectstore.NewGCSStore()
	ingestor := pipeline.NewIngestor(repo, recognize.NewGeminiRecognizer(), extract.Extract)

	// In a multi-instance deployment this queue would be replaced with a
	// hosted broker behind the same Consumer interface.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("document_id", parseJob.DocumentID).
			Str("gcs_uri", parseJob.GCSURI).
			Str("filename", objectstore.FilenameFromURI(parseJob.GCSURI)).
			Msg("Processing parse job")

		data, err := store.Fetch(ctx, parseJob.GCSURI)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", parseJob.GCSURI, err)
		}

		result, err := ingestor.Ingest(ctx, &pipeline.State{
			DocumentID:       parseJob.DocumentID,
			AccountID:        parseJob.AccountID,
			Currency:         parseJob.Currency,
			MIMEType:         parseJob.MIMEType,
			ForceRecognition: parseJob.ForceRecognition,
			Raw:              data,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", parseJob.JobID).
				Str("document_id", parseJob.DocumentID).
				Msg("Ingestion failed")
			if markErr := repo.MarkDocumentProcessed(ctx, parseJob.DocumentID, "FAILED"); markErr != nil {
				log.Error().Err(markErr).Str("document_id", parseJob.DocumentID).Msg("Failed to update document status")
			}
			return err
		}

		if err := repo.MarkDocumentProcessed(ctx, parseJob.DocumentID, "PROCESSED"); err != nil {
			log.Error().Err(err).Str("document_id", parseJob.DocumentID).Msg("Failed to update document status")
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("document_id", parseJob.DocumentID).
			Int("transactions", len(result.Statement.Transactions)).
			Int("inserted", result.Inserted).
			Int("duplicates", result.Duplicates).
			Msg("Ingestion completed")

		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker exited")
}
