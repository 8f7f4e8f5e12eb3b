package bigquery

import (
	"errors"
	"strings"
	"testing"
)

func TestTruncateErrMsg(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "short message kept verbatim",
			err:  errors.New("starting parsing run: boom"),
			want: "starting parsing run: boom",
		},
		{
			name: "oversized message truncated",
			err:  errors.New(strings.Repeat("x", 5000)),
			want: strings.Repeat("x", 2000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateErrMsg(tt.err); got != tt.want {
				t.Errorf("truncateErrMsg() = %d chars, want %d chars", len(got), len(tt.want))
			}
		})
	}
}
