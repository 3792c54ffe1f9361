package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want call.ErrorType
	}{
		{"deadline", context.DeadlineExceeded, call.ErrTimeout},
		{"canceled", context.Canceled, call.ErrTimeout},
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, call.ErrRateLimited},
		{"server error", genai.APIError{Code: 500, Message: "boom"}, call.ErrServiceUnavailable},
		{"opaque", errors.New("connection reset"), call.ErrServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err)
			if !call.IsType(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want type %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	r := NewWithClient(nil, Options{})
	if r.opts.Model != defaultModel {
		t.Errorf("model = %q", r.opts.Model)
	}
	if r.opts.MaxOutputTokens != 256 {
		t.Errorf("max output tokens = %d", r.opts.MaxOutputTokens)
	}
	if r.opts.SystemPrompt == "" {
		t.Error("empty system prompt")
	}
}
