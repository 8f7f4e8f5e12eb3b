// Package pipeline wires the statement ingestion stages into the ordered
// step sequence one document travels through: validate input, acquire text
// (extraction or recognition), parse, finalize totals, persist. Each
// document is processed independently with no shared mutable state, so any
// number of pipelines may run in parallel.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adityar/mutasi-ingest/internal/recognize"
	"github.com/adityar/mutasi-ingest/internal/statement"

	infra "github.com/adityar/mutasi-ingest/internal/infra/bigquery"
)

// Text acquisition paths, recorded on the parsing run.
const (
	SourceTextLayer   = "TEXT_LAYER"
	SourceRecognition = "GEMINI_VISION"
)

// State is the shared state carried across the pipeline steps for one
// document.
type State struct {
	DocumentID   string
	ParsingRunID string

	AccountID        string
	Currency         string
	MIMEType         string
	ForceRecognition bool

	Raw []byte

	// Source and Text are set by AcquireTextStep.
	Source string
	Text   string

	// Statement is set by ParseStatementStep and finalized in place.
	Statement *statement.ParsedStatement

	// Insert is set by PersistLedgerStep.
	Insert *infra.InsertResult

	// Now supplies the parser's default-period clock. Defaults to
	// time.Now.
	Now func() time.Time
}

// Result is what crosses the boundary back to the caller on success.
type Result struct {
	DocumentID   string                     `json:"document_id"`
	ParsingRunID string                     `json:"parsing_run_id"`
	Source       string                     `json:"source"`
	Statement    *statement.ParsedStatement `json:"statement"`
	Inserted     int                        `json:"inserted"`
	Duplicates   int                        `json:"duplicates"`
}

// Step is a single stage of the ingestion pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes a sequence of steps in order, failing fast on the first
// error.
type Pipeline struct {
	steps []Step
}

// New creates a pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially against the shared state.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// Ingestor runs the full ingestion flow for statement documents.
type Ingestor struct {
	repo       infra.LedgerRepository
	recognizer recognize.Recognizer
	extract    func([]byte) string
}

// NewIngestor creates an Ingestor over the given persistence boundary,
// recognizer and extractor function.
func NewIngestor(repo infra.LedgerRepository, recognizer recognize.Recognizer, extract func([]byte) string) *Ingestor {
	return &Ingestor{
		repo:       repo,
		recognizer: recognizer,
		extract:    extract,
	}
}

// Ingest processes one statement document end to end and returns the parse
// result plus insert/duplicate counts. The typed errors of this package
// describe every failure mode; none of them carries internal stack detail.
func (ing *Ingestor) Ingest(ctx context.Context, state *State) (*Result, error) {
	pipe := New(
		&ValidateInputStep{},
		&AcquireTextStep{recognizer: ing.recognizer, extract: ing.extract},
		&StartRunStep{repo: ing.repo},
		&ParseStatementStep{},
		&FinalizeTotalsStep{},
		&PersistLedgerStep{repo: ing.repo},
	)

	if err := pipe.Execute(ctx, state); err != nil {
		if state.ParsingRunID != "" {
			ing.repo.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		}
		return nil, err
	}

	if err := ing.repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID); err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	return &Result{
		DocumentID:   state.DocumentID,
		ParsingRunID: state.ParsingRunID,
		Source:       state.Source,
		Statement:    state.Statement,
		Inserted:     state.Insert.Inserted,
		Duplicates:   state.Insert.Duplicates,
	}, nil
}

// isImageMIME reports whether the declared media type classifies the
// document as an image.
func isImageMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}
