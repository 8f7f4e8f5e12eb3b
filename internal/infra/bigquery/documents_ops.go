package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertDocument inserts a row into ledger.statement_documents.
func (r *BigQueryLedgerRepository) InsertDocument(ctx context.Context, row *StatementDocumentRow) error {
	inserter := r.client.Dataset(datasetID).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// MarkDocumentProcessed updates the document's parsing status and stamps the
// processed timestamp.
func (r *BigQueryLedgerRepository) MarkDocumentProcessed(ctx context.Context, documentID, status string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET parsing_status = @status,
		    processed_ts = @processed_ts
		WHERE document_id = @document_id
	`, datasetID, documentsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "document_id", Value: documentID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkDocumentProcessed: running update: %w", err)
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkDocumentProcessed: waiting for job: %w", err)
	}
	if err := st.Err(); err != nil {
		return fmt.Errorf("MarkDocumentProcessed: job error: %w", err)
	}
	return nil
}

// ListDocuments returns all uploaded documents, newest first.
func (r *BigQueryLedgerRepository) ListDocuments(ctx context.Context) ([]*StatementDocumentRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			document_id, account_id, gcs_uri, original_filename,
			file_mime_type, currency, upload_ts, processed_ts, parsing_status
		FROM %s.%s
		ORDER BY upload_ts DESC
	`, datasetID, documentsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: query read: %w", err)
	}

	var rows []*StatementDocumentRow
	for {
		var row StatementDocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
