package cartesia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", Options{Voice: "voice-1", BaseURL: srv.URL})
}

func TestTranscribe(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stt" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("encoding"); got != "pcm_s16le" {
			t.Errorf("encoding = %q", got)
		}
		if got := r.URL.Query().Get("sample_rate"); got != "8000" {
			t.Errorf("sample_rate = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("Cartesia-Version"); got == "" {
			t.Error("missing version header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "ink-whisper" {
			t.Errorf("model = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "hello there"})
	})

	text, err := e.Transcribe(context.Background(), []byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeUnintelligible(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no speech"}`, http.StatusUnprocessableEntity)
	})

	_, err := e.Transcribe(context.Background(), []byte{0, 0})
	if !call.IsType(err, call.ErrUnintelligibleAudio) {
		t.Fatalf("expected UnintelligibleAudio, got %v", err)
	}
}

func TestTranscribeServerError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := e.Transcribe(context.Background(), []byte{0, 0})
	if !call.IsType(err, call.ErrEngineUnavailable) {
		t.Fatalf("expected EngineUnavailable, got %v", err)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := e.Transcribe(ctx, []byte{0, 0})
	if !call.IsType(err, call.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/bytes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["transcript"] != "hello caller" {
			t.Errorf("transcript = %v", req["transcript"])
		}
		voice, _ := req["voice"].(map[string]any)
		if voice["id"] != "voice-1" {
			t.Errorf("voice = %v", req["voice"])
		}
		format, _ := req["output_format"].(map[string]any)
		if format["encoding"] != "pcm_s16le" {
			t.Errorf("output_format = %v", req["output_format"])
		}
		_, _ = w.Write([]byte{1, 2, 3, 4})
	})

	audio, err := e.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(audio) != 4 {
		t.Fatalf("audio = %v", audio)
	}
}

func TestSynthesizeGatewayTimeout(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
	})

	_, err := e.Synthesize(context.Background(), "hi")
	if !call.IsType(err, call.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}
