package bigquery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// EntryKey derives the natural key the uniqueness check runs on: account,
// date, both polarities and the full description. Re-uploading the same
// statement produces the same keys, which is exactly what makes duplicates
// detectable.
func EntryKey(accountID string, date civil.Date, debit, credit float64, description string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.2f|%.2f|%s", accountID, date.String(), debit, credit, description)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// InsertLedgerEntries streams the rows into ledger.ledger_entries, skipping
// rows whose entry_key already exists for the same account within the batch's
// date span. Duplicates are counted, not errors: the caller reports them and
// carries on.
func (r *BigQueryLedgerRepository) InsertLedgerEntries(ctx context.Context, rows []*LedgerEntryRow) (*InsertResult, error) {
	if len(rows) == 0 {
		return &InsertResult{}, nil
	}

	accountID := rows[0].AccountID
	minDate, maxDate := rows[0].EntryDate, rows[0].EntryDate
	for _, row := range rows[1:] {
		if row.EntryDate.Before(minDate) {
			minDate = row.EntryDate
		}
		if maxDate.Before(row.EntryDate) {
			maxDate = row.EntryDate
		}
	}

	existing, err := r.existingEntryKeys(ctx, accountID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("InsertLedgerEntries: loading existing keys: %w", err)
	}

	result := &InsertResult{}
	fresh := make([]*LedgerEntryRow, 0, len(rows))
	for _, row := range rows {
		if existing[row.EntryKey] {
			result.Duplicates++
			continue
		}
		existing[row.EntryKey] = true // duplicates within one batch too
		fresh = append(fresh, row)
	}

	if len(fresh) > 0 {
		inserter := r.client.Dataset(datasetID).Table(entriesTable).Inserter()
		if err := inserter.Put(ctx, fresh); err != nil {
			return nil, classifyInsertError(err)
		}
		result.Inserted = len(fresh)
	}

	return result, nil
}

// existingEntryKeys loads the entry keys already stored for the account in
// the given date span.
func (r *BigQueryLedgerRepository) existingEntryKeys(ctx context.Context, accountID string, start, end civil.Date) (map[string]bool, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT entry_key
		FROM %s.%s
		WHERE account_id = @account_id
		  AND entry_date >= @start_date
		  AND entry_date <= @end_date
	`, datasetID, entriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "start_date", Value: start.String()},
		{Name: "end_date", Value: end.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	keys := make(map[string]bool)
	for {
		var row struct {
			EntryKey string `bigquery:"entry_key"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		keys[row.EntryKey] = true
	}
	return keys, nil
}

// classifyInsertError unwraps streaming-insert failures into something the
// caller can log usefully. Conflict responses are surfaced as such; row-level
// failures name the first offending row.
func classifyInsertError(err error) error {
	if multi, ok := err.(bigquery.PutMultiError); ok && len(multi) > 0 {
		first := multi[0]
		return fmt.Errorf("InsertLedgerEntries: %d rows rejected, first at index %d: %v", len(multi), first.RowIndex, first.Error())
	}
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == http.StatusConflict {
		return fmt.Errorf("InsertLedgerEntries: conflict from streaming insert: %w", err)
	}
	return fmt.Errorf("InsertLedgerEntries: inserting rows: %w", err)
}

// QueryEntriesByDateRange returns the stored ledger entries for an account
// between the given dates, in statement order.
func (r *BigQueryLedgerRepository) QueryEntriesByDateRange(ctx context.Context, accountID string, start, end time.Time) ([]*LedgerEntryRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			e.entry_id, e.entry_key, e.document_id, e.parsing_run_id,
			e.account_id, e.entry_date, e.description, e.reference,
			e.branch_code, e.debit_amount, e.credit_amount, e.balance,
			e.currency, e.created_ts
		FROM %s.%s e
		INNER JOIN %s.%s pr
		  ON e.parsing_run_id = pr.parsing_run_id
		WHERE e.account_id = @account_id
		  AND e.entry_date >= @start_date
		  AND e.entry_date <= @end_date
		  AND pr.status = 'SUCCESS'
		ORDER BY e.entry_date, e.created_ts
	`, datasetID, entriesTable, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "start_date", Value: start.Format(dateFormat)},
		{Name: "end_date", Value: end.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryEntriesByDateRange: query read: %w", err)
	}

	var rows []*LedgerEntryRow
	for {
		var row LedgerEntryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesByDateRange: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
