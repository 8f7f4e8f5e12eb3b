package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/adityar/mutasi-ingest/internal/logger"
)

const parserVersion = "v1"

// StartParsingRun creates a parsing_runs row with status=RUNNING and returns
// its ID. parserType records the text acquisition path (TEXT_LAYER or
// GEMINI_VISION).
func (r *BigQueryLedgerRepository) StartParsingRun(ctx context.Context, documentID, parserType string) (string, error) {
	parsingRunID := uuid.NewString()

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			parsing_run_id, document_id, started_ts,
			parser_type, parser_version, status
		)
		VALUES (
			@parsing_run_id, @document_id, @started_ts,
			@parser_type, @parser_version, @status
		)
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: parserType},
		{Name: "parser_version", Value: parserVersion},
		{Name: "status", Value: "RUNNING"},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartParsingRun: running insert: %w", err)
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartParsingRun: waiting for job: %w", err)
	}
	if err := st.Err(); err != nil {
		return "", fmt.Errorf("StartParsingRun: job error: %w", err)
	}

	return parsingRunID, nil
}

// MarkParsingRunFailed updates a run to status=FAILED. Failures here are
// logged, not returned: the run row is bookkeeping and must never mask the
// original pipeline error.
func (r *BigQueryLedgerRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	if err := r.finishParsingRun(ctx, parsingRunID, "FAILED", truncateErrMsg(parseErr)); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("parsing_run_id", parsingRunID).Msg("marking parsing run failed")
	}
}

// truncateErrMsg bounds the stored error message so an oversized wrapped
// error cannot blow past the column's expected size.
func truncateErrMsg(parseErr error) string {
	if parseErr == nil {
		return ""
	}
	msg := parseErr.Error()
	const maxLen = 2000
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

// MarkParsingRunSucceeded updates a run to status=SUCCESS.
func (r *BigQueryLedgerRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	if err := r.finishParsingRun(ctx, parsingRunID, "SUCCESS", ""); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}

func (r *BigQueryLedgerRepository) finishParsingRun(ctx context.Context, parsingRunID, status, errMsg string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running update: %w", err)
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := st.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
