// Package recognize acquires text from documents that carry no extractable
// text layer by sending the raw bytes to a vision-capable model. It is a
// pure text-acquisition boundary: it returns a transcription or a typed
// error, and never parses.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModelName is the vision model used for transcription.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultTimeout bounds the single recognition call. The upstream
	// service imposes no deadline of its own; expiry surfaces as a
	// transport failure.
	DefaultTimeout = 2 * time.Minute

	// minTranscriptionLen is the minimum usable transcription length. A
	// shorter response means the model saw no statement to speak of.
	minTranscriptionLen = 50

	// DefaultMIMEType is assumed when the caller supplies no media-type
	// hint.
	DefaultMIMEType = "application/pdf"
)

// transcribePrompt instructs the model to act as a transcriber only. Parsing
// stays on our side, so the prompt insists on verbatim text with line
// structure intact.
const transcribePrompt = "You are a document transcription service.\n\n" +
	"Task:\n" +
	"- Extract ALL text from the attached bank statement, verbatim.\n" +
	"- Preserve the line structure: one output line per visual line.\n" +
	"- Preserve every date, amount, balance and period marker exactly as printed.\n" +
	"- Do NOT summarize, reorder, interpret or annotate anything.\n\n" +
	"Return ONLY the transcribed text, no commentary and no Markdown."

// Typed failure modes. Callers branch on these with errors.Is.
var (
	// ErrUnsupportedFormat means the service rejected the payload's media
	// type. The fix is on the caller's side: re-render and resubmit the
	// document as an image.
	ErrUnsupportedFormat = errors.New("recognition service rejected the document format: convert the document to an image (PNG/JPEG) and resubmit")

	// ErrEmptyTranscription means the response carried no transcription
	// field at all.
	ErrEmptyTranscription = errors.New("recognition service returned no transcription")

	// ErrTranscriptionTooShort means the transcription is below the
	// minimum usable length.
	ErrTranscriptionTooShort = errors.New("recognition service returned a transcription too short to parse")
)

// formatKeywords are scanned against the service's error payload to detect
// an unsupported-format rejection, which the service does not signal with a
// dedicated code.
var formatKeywords = []string{
	"unsupported", "mime", "media type", "file format", "invalid format",
	"not a valid", "could not process the file",
}

// Recognizer transcribes document bytes into plain text.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeHint string) (string, error)
}

// GeminiRecognizer is the concrete Recognizer backed by the Gemini API.
type GeminiRecognizer struct {
	Model   string
	Timeout time.Duration
}

// NewGeminiRecognizer creates a recognizer with the default model and
// timeout.
func NewGeminiRecognizer() *GeminiRecognizer {
	return &GeminiRecognizer{
		Model:   DefaultModelName,
		Timeout: DefaultTimeout,
	}
}

// Recognize sends one request carrying the document bytes and the fixed
// transcription prompt, and returns the transcription text. All failure
// modes surface as typed errors; nothing is retried and nothing is silently
// degraded.
func (r *GeminiRecognizer) Recognize(ctx context.Context, data []byte, mimeHint string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("Recognize: empty document")
	}

	mime := strings.TrimSpace(mimeHint)
	if mime == "" {
		mime = DefaultMIMEType
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Recognize: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mime,
						Data:     data,
					},
				},
			},
		},
	}

	model := r.Model
	if model == "" {
		model = DefaultModelName
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", classifyServiceError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyTranscription
	}
	if len(text) < minTranscriptionLen {
		return "", fmt.Errorf("%w: got %d characters", ErrTranscriptionTooShort, len(text))
	}

	return text, nil
}

// classifyServiceError distinguishes an unsupported-format rejection from a
// plain transport failure by scanning the error payload.
func classifyServiceError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, kw := range formatKeywords {
		if strings.Contains(msg, kw) {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}
	return fmt.Errorf("Recognize: recognition service unavailable: %w", err)
}
