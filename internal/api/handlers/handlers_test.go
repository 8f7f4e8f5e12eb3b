package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/jobs"
	"github.com/adityar/mutasi-ingest/internal/jobs/inmemory"
	"github.com/adityar/mutasi-ingest/internal/pipeline"
	"github.com/adityar/mutasi-ingest/internal/recognize"
	"github.com/adityar/mutasi-ingest/internal/statement"
)

type mockIngestor struct {
	IngestFunc func(ctx context.Context, state *pipeline.State) (*pipeline.Result, error)
}

func (m *mockIngestor) Ingest(ctx context.Context, state *pipeline.State) (*pipeline.Result, error) {
	return m.IngestFunc(ctx, state)
}

type mockRepo struct {
	InsertDocumentFunc func(ctx context.Context, row *infra.StatementDocumentRow) error
	QueryEntriesFunc   func(ctx context.Context, accountID string, start, end time.Time) ([]*infra.LedgerEntryRow, error)
	ListDocumentsFunc  func(ctx context.Context) ([]*infra.StatementDocumentRow, error)
}

func (m *mockRepo) InsertDocument(ctx context.Context, row *infra.StatementDocumentRow) error {
	if m.InsertDocumentFunc != nil {
		return m.InsertDocumentFunc(ctx, row)
	}
	return nil
}

func (m *mockRepo) MarkDocumentProcessed(ctx context.Context, documentID string, status string) error {
	return nil
}

func (m *mockRepo) StartParsingRun(ctx context.Context, documentID, parserType string) (string, error) {
	return "run-1", nil
}

func (m *mockRepo) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {}

func (m *mockRepo) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	return nil
}

func (m *mockRepo) InsertLedgerEntries(ctx context.Context, rows []*infra.LedgerEntryRow) (*infra.InsertResult, error) {
	return &infra.InsertResult{Inserted: len(rows)}, nil
}

func (m *mockRepo) QueryEntriesByDateRange(ctx context.Context, accountID string, start, end time.Time) ([]*infra.LedgerEntryRow, error) {
	if m.QueryEntriesFunc != nil {
		return m.QueryEntriesFunc(ctx, accountID, start, end)
	}
	return nil, nil
}

func (m *mockRepo) ListDocuments(ctx context.Context) ([]*infra.StatementDocumentRow, error) {
	if m.ListDocumentsFunc != nil {
		return m.ListDocumentsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepo) Close() error { return nil }

func multipartRequest(t *testing.T, target string, fields map[string]string, fileContent []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if fileContent != nil {
		fw, err := w.CreateFormFile("file", "statement.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := fw.Write(fileContent); err != nil {
			t.Fatalf("writing file part failed: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s) failed: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestStatementsHandler(ing StatementIngestor) *StatementsHandler {
	return NewStatementsHandler(ing, &mockRepo{}, nil, nil, "", zerolog.Nop())
}

func TestParseStatement_Success(t *testing.T) {
	ing := &mockIngestor{
		IngestFunc: func(ctx context.Context, state *pipeline.State) (*pipeline.Result, error) {
			if state.AccountID != "acc-1" {
				t.Errorf("AccountID = %q, want acc-1", state.AccountID)
			}
			if state.Currency != "IDR" {
				t.Errorf("Currency = %q, want IDR", state.Currency)
			}
			if !state.ForceRecognition {
				t.Error("ForceRecognition not propagated")
			}
			return &pipeline.Result{
				DocumentID: "doc-1",
				Source:     pipeline.SourceTextLayer,
				Statement: &statement.ParsedStatement{
					Period: "JANUARI 2025",
					Transactions: []*statement.Transaction{
						{Description: "TRANSFER MASUK", CreditAmount: 500000},
					},
				},
				Inserted: 1,
			}, nil
		},
	}

	h := newTestStatementsHandler(ing)
	req := multipartRequest(t, "/api/statements/parse", map[string]string{
		"account_id":        "acc-1",
		"currency":          "idr",
		"force_recognition": "true",
	}, []byte("%PDF-1.4 fake"))
	rec := httptest.NewRecorder()

	h.ParseStatement(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var result pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if result.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q, want doc-1", result.DocumentID)
	}
	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
}

func TestParseStatement_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "input error maps to 400",
			err:        &pipeline.InputError{Field: "account_id", Reason: "target account is required"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty statement maps to 422",
			err:        &pipeline.EmptyStatementError{Source: pipeline.SourceTextLayer},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "no text layer maps to 422",
			err:        pipeline.ErrNoTextLayer,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unsupported format maps to 415",
			err:        fmt.Errorf("%w: details", recognize.ErrUnsupportedFormat),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "empty transcription maps to 502",
			err:        recognize.ErrEmptyTranscription,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "short transcription maps to 502",
			err:        fmt.Errorf("%w: got 12 characters", recognize.ErrTranscriptionTooShort),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &mockIngestor{
				IngestFunc: func(ctx context.Context, state *pipeline.State) (*pipeline.Result, error) {
					return nil, tt.err
				},
			}

			h := newTestStatementsHandler(ing)
			req := multipartRequest(t, "/api/statements/parse", map[string]string{
				"account_id": "acc-1",
				"currency":   "IDR",
			}, []byte("%PDF-1.4 fake"))
			rec := httptest.NewRecorder()

			h.ParseStatement(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestParseStatement_EmptyStatementCarriesSuggestions(t *testing.T) {
	ing := &mockIngestor{
		IngestFunc: func(ctx context.Context, state *pipeline.State) (*pipeline.Result, error) {
			return nil, &pipeline.EmptyStatementError{Source: pipeline.SourceTextLayer}
		},
	}

	h := newTestStatementsHandler(ing)
	req := multipartRequest(t, "/api/statements/parse", map[string]string{
		"account_id": "acc-1",
	}, []byte("%PDF-1.4 fake"))
	rec := httptest.NewRecorder()

	h.ParseStatement(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	var body struct {
		Error       string   `json:"error"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
	if len(body.Suggestions) == 0 {
		t.Error("expected suggestions in the 422 body")
	}
}

func TestParseStatement_DefaultCurrency(t *testing.T) {
	var gotCurrency string
	ing := &mockIngestor{
		IngestFunc: func(ctx context.Context, state *pipeline.State) (*pipeline.Result, error) {
			gotCurrency = state.Currency
			return nil, &pipeline.InputError{Field: "file", Reason: "no document bytes supplied"}
		},
	}

	h := newTestStatementsHandler(ing)
	req := multipartRequest(t, "/api/statements/parse", map[string]string{
		"account_id": "acc-1",
	}, nil)
	rec := httptest.NewRecorder()

	h.ParseStatement(rec, req)

	if gotCurrency != "IDR" {
		t.Errorf("Currency = %q, want default IDR", gotCurrency)
	}
}

func TestListEntries_Validation(t *testing.T) {
	h := NewEntriesHandler(&mockRepo{}, zerolog.Nop())

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{
			name:       "missing account_id",
			target:     "/api/entries",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad start_date",
			target:     "/api/entries?account_id=acc-1&start_date=01-05-2025",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "valid range",
			target:     "/api/entries?account_id=acc-1&start_date=2025-01-01&end_date=2025-01-31",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			h.ListEntries(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	job := &jobs.ParseStatementJob{
		JobID:      "job-1",
		DocumentID: "doc-1",
		Status:     jobs.JobStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	h := NewJobsHandler(store, zerolog.Nop())

	t.Run("get existing job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
		rec := httptest.NewRecorder()

		h.GetJob(rec, req, "job-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var got jobs.ParseStatementJob
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding response failed: %v", err)
		}
		if got.JobID != "job-1" {
			t.Errorf("JobID = %q, want job-1", got.JobID)
		}
	})

	t.Run("missing job is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
		rec := httptest.NewRecorder()

		h.GetJob(rec, req, "nope")

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=pending", nil)
		rec := httptest.NewRecorder()

		h.ListJobs(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding response failed: %v", err)
		}
		if body.Count != 1 {
			t.Errorf("count = %d, want 1", body.Count)
		}
	})
}
