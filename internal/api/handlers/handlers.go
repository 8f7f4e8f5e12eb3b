// Package handlers implements the HTTP endpoints of the ingestion service:
// synchronous statement parsing, async upload+enqueue, and the read-side
// endpoints for documents, ledger entries and jobs.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adityar/mutasi-ingest/internal/api/middleware"
	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/jobs"
	"github.com/adityar/mutasi-ingest/internal/objectstore"
	"github.com/adityar/mutasi-ingest/internal/pipeline"
	"github.com/adityar/mutasi-ingest/internal/recognize"
)

// maxUploadBytes caps statement uploads. Statements are a handful of pages;
// anything larger is not a statement.
const maxUploadBytes = 32 << 20

// StatementIngestor runs the ingestion pipeline for one document.
type StatementIngestor interface {
	Ingest(ctx context.Context, state *pipeline.State) (*pipeline.Result, error)
}

// StatementsHandler handles statement upload and parse endpoints.
type StatementsHandler struct {
	ingestor  StatementIngestor
	repo      infra.LedgerRepository
	store     objectstore.Store
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewStatementsHandler wires the statements endpoints.
func NewStatementsHandler(ingestor StatementIngestor, repo infra.LedgerRepository, store objectstore.Store, publisher jobs.Publisher, bucket string, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		ingestor:  ingestor,
		repo:      repo,
		store:     store,
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// parseRequest is the multipart form shared by the parse and upload
// endpoints: file, account_id, currency, optional mime_type and
// force_recognition.
type parseRequest struct {
	data             []byte
	filename         string
	accountID        string
	currency         string
	mimeType         string
	forceRecognition bool
}

func readParseRequest(r *http.Request) (*parseRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	req := &parseRequest{
		accountID: r.FormValue("account_id"),
		currency:  strings.ToUpper(r.FormValue("currency")),
		mimeType:  r.FormValue("mime_type"),
	}
	if v := r.FormValue("force_recognition"); v != "" {
		req.forceRecognition, _ = strconv.ParseBool(v)
	}
	if req.currency == "" {
		req.currency = "IDR"
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, nil // validated downstream as missing bytes
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}

	req.data = data
	req.filename = filepath.Base(header.Filename)
	if req.mimeType == "" {
		req.mimeType = header.Header.Get("Content-Type")
	}
	return req, nil
}

// ParseStatement handles POST /api/statements/parse: synchronous ingestion
// of an uploaded statement document.
func (h *StatementsHandler) ParseStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := readParseRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := &pipeline.State{
		AccountID:        req.accountID,
		Currency:         req.currency,
		MIMEType:         req.mimeType,
		ForceRecognition: req.forceRecognition,
		Raw:              req.data,
	}

	result, err := h.ingestor.Ingest(ctx, state)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	h.log.Info().
		Str("document_id", result.DocumentID).
		Str("source", result.Source).
		Int("transactions", len(result.Statement.Transactions)).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Msg("Statement ingested")

	middleware.WriteJSON(w, http.StatusOK, result)
}

// writeIngestError maps the pipeline error taxonomy onto HTTP statuses. All
// messages are user-readable; none expose internals.
func (h *StatementsHandler) writeIngestError(w http.ResponseWriter, err error) {
	var inputErr *pipeline.InputError
	if errors.As(err, &inputErr) {
		middleware.WriteError(w, http.StatusBadRequest, inputErr.Error())
		return
	}

	var emptyErr *pipeline.EmptyStatementError
	if errors.As(err, &emptyErr) {
		middleware.WriteErrorWithSuggestions(w, http.StatusUnprocessableEntity, emptyErr.Error(), emptyErr.Suggestions())
		return
	}

	switch {
	case errors.Is(err, pipeline.ErrNoTextLayer):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, recognize.ErrUnsupportedFormat):
		middleware.WriteError(w, http.StatusUnsupportedMediaType, recognize.ErrUnsupportedFormat.Error())
	case errors.Is(err, recognize.ErrEmptyTranscription), errors.Is(err, recognize.ErrTranscriptionTooShort):
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg("Statement ingestion failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Statement ingestion failed")
	}
}

// UploadStatement handles POST /api/statements/upload: stores the original
// document in object storage, records it, and enqueues an async parse job.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Document uploads are disabled: no storage bucket configured")
		return
	}

	req, err := readParseRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	if req.accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	documentID := uuid.NewString()
	objectName := fmt.Sprintf("statements/%s/%s-%s", time.Now().Format("2006/01/02"), documentID, req.filename)

	gcsURI, err := h.store.Upload(ctx, h.bucket, objectName, req.mimeType, bytes.NewReader(req.data))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}

	doc := &infra.StatementDocumentRow{
		DocumentID:       documentID,
		AccountID:        req.accountID,
		GCSURI:           gcsURI,
		OriginalFilename: req.filename,
		FileMimeType:     req.mimeType,
		Currency:         req.currency,
		UploadTS:         time.Now(),
		ParsingStatus:    "PENDING",
	}
	if err := h.repo.InsertDocument(ctx, doc); err != nil {
		h.log.Error().Err(err).Msg("Failed to record document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record document")
		return
	}

	job := &jobs.ParseStatementJob{
		DocumentID:       documentID,
		GCSURI:           gcsURI,
		AccountID:        req.accountID,
		Currency:         req.currency,
		MIMEType:         req.mimeType,
		ForceRecognition: req.forceRecognition,
	}
	if err := h.publisher.PublishParseStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue parse job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parse job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("document_id", documentID).
		Str("gcs_uri", gcsURI).
		Msg("Parse job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": documentID,
		"gcs_uri":     gcsURI,
		"status":      string(job.Status),
	})
}

// ListDocuments handles GET /api/statements.
func (h *StatementsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.repo.ListDocuments(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

// EntriesHandler handles read access to persisted ledger entries.
type EntriesHandler struct {
	repo infra.LedgerRepository
	log  zerolog.Logger
}

// NewEntriesHandler creates the entries handler.
func NewEntriesHandler(repo infra.LedgerRepository, log zerolog.Logger) *EntriesHandler {
	return &EntriesHandler{repo: repo, log: log}
}

// ListEntries handles GET /api/entries?account_id=...&start_date=...&end_date=...
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	accountID := query.Get("account_id")
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	startDate, endDate, err := dateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.repo.QueryEntriesByDateRange(r.Context(), accountID, startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query ledger entries")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query ledger entries")
		return
	}
	if entries == nil {
		entries = []*infra.LedgerEntryRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, entries)
}

func dateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Now().AddDate(-1, 0, 0)
	end := time.Now()

	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return start, end, fmt.Errorf("invalid start_date format")
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return start, end, fmt.Errorf("invalid end_date format")
		}
	}
	return start, end, nil
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
