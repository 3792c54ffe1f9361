// Package gemini implements the reasoning boundary on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

const defaultModel = "gemini-2.0-flash"

const systemPrompt = `You are a helpful voice assistant answering a phone call.
Keep replies short and conversational: one or two sentences, no lists, no
markdown, nothing that cannot be read aloud naturally.`

// Options configures the reasoner.
type Options struct {
	// Model is the Gemini model ID. Default gemini-2.0-flash.
	Model string

	// SystemPrompt overrides the built-in voice-assistant instruction.
	// Tenant-specific prompts can be layered by the caller.
	SystemPrompt string

	// MaxOutputTokens bounds reply length. Default 256; phone replies
	// should be short.
	MaxOutputTokens int32
}

// Reasoner generates replies with Gemini. It implements call.Reasoner.
type Reasoner struct {
	client *genai.Client
	opts   Options
}

// New creates a reasoner using the Gemini API backend.
func New(ctx context.Context, apiKey string, opts Options) (*Reasoner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, call.WrapError(call.ErrServiceUnavailable, "create gemini client", err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient creates a reasoner around an existing client.
func NewWithClient(client *genai.Client, opts Options) *Reasoner {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = systemPrompt
	}
	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = 256
	}
	return &Reasoner{client: client, opts: opts}
}

// Reply generates the next assistant utterance from the conversation so far.
// The tenant context is folded into the system instruction so per-customer
// prompt material reaches the model without the core interpreting it.
func (r *Reasoner) Reply(ctx context.Context, history []call.Entry, utterance, tenant string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, e := range history {
		role := genai.Role(genai.RoleUser)
		if e.Speaker == call.SpeakerAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(e.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(utterance, genai.RoleUser))

	instruction := r.opts.SystemPrompt
	if tenant != "" {
		instruction += "\n\nTenant context: " + tenant
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.opts.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		MaxOutputTokens:   r.opts.MaxOutputTokens,
	})
	if err != nil {
		return "", mapError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", call.NewError(call.ErrServiceUnavailable, "gemini returned no text")
	}
	return text, nil
}

// mapError converts genai failures into the reasoning error taxonomy.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return call.WrapError(call.ErrTimeout, "gemini request", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return call.WrapError(call.ErrRateLimited, "gemini request", err)
		}
	}
	return call.WrapError(call.ErrServiceUnavailable, "gemini request", err)
}
