package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adityar/mutasi-ingest/internal/api/handlers"
	"github.com/adityar/mutasi-ingest/internal/api/middleware"
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
		port    = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		project = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("GCP project is required: pass -project or set GOOGLE_CLOUD_PROJECT")
	}
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - async uploads will be disabled")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewLedgerRepository(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	store := objectstore.NewGCSStore()
	ingestor := pipeline.NewIngestor(repo, recognize.NewGeminiRecognizer(), extract.Extract)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("document_id", parseJob.DocumentID).
			Str("gcs_uri", parseJob.GCSURI).
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
			Msg("Ingestion completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	statementsHandler := handlers.NewStatementsHandler(ingestor, repo, store, jobQueue, *bucket, log)
	entriesHandler := handlers.NewEntriesHandler(repo, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statementsHandler.ListDocuments(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/parse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.ParseStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.UploadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			entriesHandler.ListEntries(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // synchronous parse may wait on recognition
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
