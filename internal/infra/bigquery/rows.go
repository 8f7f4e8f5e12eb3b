package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// StatementDocumentRow is one uploaded statement document in
// ledger.statement_documents.
type StatementDocumentRow struct {
	DocumentID       string                 `bigquery:"document_id"`
	AccountID        string                 `bigquery:"account_id"`
	GCSURI           string                 `bigquery:"gcs_uri"`
	OriginalFilename string                 `bigquery:"original_filename"`
	FileMimeType     string                 `bigquery:"file_mime_type"`
	Currency         string                 `bigquery:"currency"`
	UploadTS         time.Time              `bigquery:"upload_ts"`
	ProcessedTS      bigquery.NullTimestamp `bigquery:"processed_ts"`
	ParsingStatus    string                 `bigquery:"parsing_status"`
}

// ParsingRunRow tracks one attempt to parse a document. A run moves from
// RUNNING to SUCCESS or FAILED and is never reused.
type ParsingRunRow struct {
	ParsingRunID string                 `bigquery:"parsing_run_id"`
	DocumentID   string                 `bigquery:"document_id"`
	StartedAt    time.Time              `bigquery:"started_ts"`
	FinishedAt   bigquery.NullTimestamp `bigquery:"finished_ts"`

	// ParserType records which acquisition path produced the text, e.g.
	// TEXT_LAYER or GEMINI_VISION.
	ParserType    string `bigquery:"parser_type"`
	ParserVersion string `bigquery:"parser_version"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`
}

// LedgerEntryRow is one insert-ready ledger row in ledger.ledger_entries.
// EntryKey is the natural key the duplicate check runs on.
type LedgerEntryRow struct {
	EntryID      string `bigquery:"entry_id"`
	EntryKey     string `bigquery:"entry_key"`
	DocumentID   string `bigquery:"document_id"`
	ParsingRunID string `bigquery:"parsing_run_id"`
	AccountID    string `bigquery:"account_id"`

	EntryDate   civil.Date           `bigquery:"entry_date"`
	Description string               `bigquery:"description"`
	Reference   string               `bigquery:"reference"`
	BranchCode  string               `bigquery:"branch_code"`
	Debit       float64              `bigquery:"debit_amount"`
	Credit      float64              `bigquery:"credit_amount"`
	Balance     bigquery.NullFloat64 `bigquery:"balance"`
	Currency    string               `bigquery:"currency"`

	CreatedTS time.Time `bigquery:"created_ts"`
}
