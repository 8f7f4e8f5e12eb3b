package pipeline

import (
	"errors"
	"fmt"
)

// The ingestion error taxonomy. Input errors are rejected before any
// extraction runs; extraction and recognition failures abort the pipeline
// immediately; a parse that finds zero transactions is its own recoverable
// outcome with actionable suggestions attached. Duplicate inserts are not
// errors at all; they come back as counts in the result.

// InputError reports a missing or invalid required field, detected before
// any work is done.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// ErrNoTextLayer means neither extraction strategy found any text and the
// caller did not ask for recognition.
var ErrNoTextLayer = errors.New("no text layer found in the document: retry with recognition enabled, or upload a text-based export of the statement")

// EmptyStatementError means the text was acquired but the parser emitted
// zero transactions. The document may be encrypted, image-only, or an
// unrecognized layout; the attached suggestions are shown to the user.
type EmptyStatementError struct {
	// Source names the text acquisition path that fed the parser, so the
	// suggestions can be tailored (suggesting recognition is pointless
	// when recognition already ran).
	Source string
}

func (e *EmptyStatementError) Error() string {
	return "no transactions recognized in the statement text"
}

// Suggestions returns the user-actionable fallback paths for a
// zero-transaction parse.
func (e *EmptyStatementError) Suggestions() []string {
	s := []string{
		"download the statement again using the bank's text-based export format",
		"enter the transactions manually",
	}
	if e.Source != SourceRecognition {
		s = append([]string{
			"retry with recognition enabled (force_recognition=true)",
			"convert the statement to an image (PNG/JPEG) and resubmit",
		}, s...)
	}
	return s
}
