package recognize

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyServiceError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnsupported bool
	}{
		{
			name:            "mime rejection",
			err:             errors.New("400: invalid argument: unsupported MIME type application/octet-stream"),
			wantUnsupported: true,
		},
		{
			name:            "media type rejection",
			err:             errors.New("the provided media type is not allowed"),
			wantUnsupported: true,
		},
		{
			name:            "file format rejection",
			err:             errors.New("could not process the file"),
			wantUnsupported: true,
		},
		{
			name:            "transport failure",
			err:             errors.New("context deadline exceeded"),
			wantUnsupported: false,
		},
		{
			name:            "server error",
			err:             errors.New("500: internal error"),
			wantUnsupported: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyServiceError(tt.err)
			if errors.Is(got, ErrUnsupportedFormat) != tt.wantUnsupported {
				t.Errorf("classifyServiceError(%v): ErrUnsupportedFormat = %v, want %v",
					tt.err, errors.Is(got, ErrUnsupportedFormat), tt.wantUnsupported)
			}
			if !tt.wantUnsupported && !errors.Is(got, tt.err) {
				t.Errorf("classifyServiceError(%v) lost the underlying error", tt.err)
			}
		})
	}
}

func TestRecognize_EmptyDocument(t *testing.T) {
	r := NewGeminiRecognizer()
	if _, err := r.Recognize(context.Background(), nil, "application/pdf"); err == nil {
		t.Error("Recognize(empty) wanted an error, got nil")
	}
}
