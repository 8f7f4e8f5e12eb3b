package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
	"github.com/adityar/mutasi-ingest/internal/recognize"
	"github.com/adityar/mutasi-ingest/internal/statement"
)

// ValidateInputStep rejects incomplete requests before any extraction runs.
type ValidateInputStep struct{}

func (s *ValidateInputStep) Execute(ctx context.Context, state *State) error {
	if len(state.Raw) == 0 {
		return &InputError{Field: "file", Reason: "no document bytes supplied"}
	}
	if state.AccountID == "" {
		return &InputError{Field: "account_id", Reason: "target account is required"}
	}
	if state.Currency == "" {
		return &InputError{Field: "currency", Reason: "currency code is required"}
	}
	if state.DocumentID == "" {
		state.DocumentID = uuid.NewString()
	}
	return nil
}

// AcquireTextStep produces the plain text the parser consumes. Recognition
// runs when the document is declared an image or the caller forces it;
// otherwise the raw extractor runs, and an empty extraction with recognition
// not requested is a hard stop with guidance.
type AcquireTextStep struct {
	recognizer recognize.Recognizer
	extract    func([]byte) string
}

func (s *AcquireTextStep) Execute(ctx context.Context, state *State) error {
	if state.ForceRecognition || isImageMIME(state.MIMEType) {
		text, err := s.recognizer.Recognize(ctx, state.Raw, state.MIMEType)
		if err != nil {
			return err
		}
		state.Source = SourceRecognition
		state.Text = text
		return nil
	}

	state.Source = SourceTextLayer
	state.Text = s.extract(state.Raw)
	if state.Text == "" {
		return ErrNoTextLayer
	}
	return nil
}

// StartRunStep opens a parsing run so a failure anywhere downstream is
// traceable to an acquisition path and a document.
type StartRunStep struct {
	repo infra.LedgerRepository
}

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	runID, err := s.repo.StartParsingRun(ctx, state.DocumentID, state.Source)
	if err != nil {
		return fmt.Errorf("starting parsing run: %w", err)
	}
	state.ParsingRunID = runID
	return nil
}

// ParseStatementStep runs the block parser over the acquired text. Zero
// recognized transactions is a distinguished recoverable outcome, never a
// parser crash.
type ParseStatementStep struct{}

func (s *ParseStatementStep) Execute(ctx context.Context, state *State) error {
	st := statement.Parse(state.Text, statement.ParseOptions{
		Now:      state.Now,
		Currency: state.Currency,
	})
	if len(st.Transactions) == 0 {
		return &EmptyStatementError{Source: state.Source}
	}
	state.Statement = st
	return nil
}

// FinalizeTotalsStep recomputes the debit/credit totals.
type FinalizeTotalsStep struct{}

func (s *FinalizeTotalsStep) Execute(ctx context.Context, state *State) error {
	state.Statement = statement.Finalize(state.Statement)
	return nil
}

// PersistLedgerStep hands the insert-ready rows to the persistence boundary.
// Duplicate rows are skipped there and reported back as a count.
type PersistLedgerStep struct {
	repo infra.LedgerRepository
}

func (s *PersistLedgerStep) Execute(ctx context.Context, state *State) error {
	rows := buildLedgerRows(state)
	result, err := s.repo.InsertLedgerEntries(ctx, rows)
	if err != nil {
		return fmt.Errorf("persisting ledger entries: %w", err)
	}
	state.Insert = result
	return nil
}

// buildLedgerRows maps parsed transactions to insert-ready ledger rows.
func buildLedgerRows(state *State) []*infra.LedgerEntryRow {
	rows := make([]*infra.LedgerEntryRow, 0, len(state.Statement.Transactions))
	for _, tx := range state.Statement.Transactions {
		date := civil.DateOf(tx.Date)
		row := &infra.LedgerEntryRow{
			EntryID:      uuid.NewString(),
			EntryKey:     infra.EntryKey(state.AccountID, date, tx.DebitAmount, tx.CreditAmount, tx.Description),
			DocumentID:   state.DocumentID,
			ParsingRunID: state.ParsingRunID,
			AccountID:    state.AccountID,
			EntryDate:    date,
			Description:  tx.Description,
			Reference:    tx.Reference,
			BranchCode:   tx.BranchCode,
			Debit:        tx.DebitAmount,
			Credit:       tx.CreditAmount,
			Currency:     state.Currency,
			CreatedTS:    time.Now(),
		}
		if tx.Balance != nil {
			row.Balance = bigquery.NullFloat64{Float64: *tx.Balance, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
