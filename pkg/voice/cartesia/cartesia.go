// Package cartesia implements the speech engine boundary against Cartesia's
// STT and TTS HTTP APIs.
package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

const (
	baseURL    = "https://api.cartesia.ai"
	apiVersion = "2025-04-16"

	defaultSTTModel = "ink-whisper"
	defaultTTSModel = "sonic-3"
)

// Options configures the engine.
type Options struct {
	// Voice is the Cartesia voice ID used for synthesis.
	Voice string

	// Language is the ISO language code for both directions. Default "en".
	Language string

	// SampleRate is the PCM sample rate for audio in and out. Default 8000,
	// matching telephony media.
	SampleRate int

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// Engine talks to Cartesia for both transcription and synthesis. It
// implements call.SpeechEngine.
type Engine struct {
	apiKey     string
	opts       Options
	httpClient *http.Client
}

// New creates an engine with the default HTTP client.
func New(apiKey string, opts Options) *Engine {
	return NewWithClient(apiKey, opts, &http.Client{})
}

// NewWithClient creates an engine with a custom HTTP client.
func NewWithClient(apiKey string, opts Options, client *http.Client) *Engine {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 8000
	}
	if opts.BaseURL == "" {
		opts.BaseURL = baseURL
	}
	return &Engine{apiKey: apiKey, opts: opts, httpClient: client}
}

type transcriptionResponse struct {
	Text     string   `json:"text"`
	Language *string  `json:"language,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// Transcribe converts one utterance of raw PCM to text via POST /stt.
func (e *Engine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.pcm")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", defaultSTTModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("language", e.opts.Language); err != nil {
		return "", fmt.Errorf("write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	u, err := url.Parse(e.opts.BaseURL + "/stt")
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", fmt.Sprintf("%d", e.opts.SampleRate))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError("stt", resp)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", call.WrapError(call.ErrEngineUnavailable, "parse stt response", err)
	}
	return out.Text, nil
}

type ttsRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Language     *string      `json:"language,omitempty"`
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize converts text to raw PCM via POST /tts/bytes.
func (e *Engine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		ModelID:    defaultTTSModel,
		Transcript: text,
		Voice:      voiceSpec{Mode: "id", ID: e.opts.Voice},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: e.opts.SampleRate,
		},
		Language: &e.opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return []byte{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError("tts", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, call.WrapError(call.ErrEngineUnavailable, "read tts audio", err)
	}
	return audio, nil
}

// mapTransportError converts client/network failures into the engine error
// taxonomy the session understands.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return call.WrapError(call.ErrTimeout, "cartesia request", err)
	}
	return call.WrapError(call.ErrEngineUnavailable, "cartesia request", err)
}

func mapStatusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("cartesia %s error %d: %s", op, resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return call.NewError(call.ErrUnintelligibleAudio, msg)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return call.NewError(call.ErrTimeout, msg)
	default:
		return call.NewError(call.ErrEngineUnavailable, msg)
	}
}
