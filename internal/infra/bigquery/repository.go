// Package bigquery is the relational persistence boundary for the statement
// ingestion core. It owns three tables in the ledger dataset: uploaded
// statement documents, parsing runs, and the ledger entries themselves.
// Uniqueness of ledger entries is enforced here, by natural key; duplicate
// inserts are counted and reported, never treated as parser failures.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

const (
	datasetID = "ledger"

	documentsTable = "statement_documents"
	runsTable      = "parsing_runs"
	entriesTable   = "ledger_entries"

	dateFormat = "2006-01-02"
)

// InsertResult reports the outcome of a batch insert. Duplicates are rows
// skipped because an entry with the same natural key already exists.
type InsertResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// LedgerRepository is the persistence interface the pipeline depends on.
type LedgerRepository interface {
	InsertDocument(ctx context.Context, row *StatementDocumentRow) error
	MarkDocumentProcessed(ctx context.Context, documentID string, status string) error

	StartParsingRun(ctx context.Context, documentID, parserType string) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error

	InsertLedgerEntries(ctx context.Context, rows []*LedgerEntryRow) (*InsertResult, error)
	QueryEntriesByDateRange(ctx context.Context, accountID string, start, end time.Time) ([]*LedgerEntryRow, error)
	ListDocuments(ctx context.Context) ([]*StatementDocumentRow, error)

	Close() error
}

// BigQueryLedgerRepository implements LedgerRepository over a shared
// BigQuery client.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	projectID string
}

// NewLedgerRepository creates a repository with its own client. Application
// Default Credentials are assumed.
func NewLedgerRepository(ctx context.Context, projectID string) (*BigQueryLedgerRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{client: client, projectID: projectID}, nil
}

// Close releases the underlying client.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var _ LedgerRepository = (*BigQueryLedgerRepository)(nil)
