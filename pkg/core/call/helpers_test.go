package call

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testConfig returns a Config with short enough windows for unit tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Greeting = "Hi there!"
	cfg.FallbackUtterance = "Sorry, give me a moment."
	cfg.SilenceTimeout = 500 * time.Millisecond
	cfg.TranscribeTimeout = 500 * time.Millisecond
	cfg.ReasonTimeout = 500 * time.Millisecond
	cfg.SpeakTimeout = 500 * time.Millisecond
	cfg.MinSilence = 40 * time.Millisecond
	cfg.MaxUtterance = 2 * time.Second
	return cfg
}

// makeFrame builds a 20ms PCM frame. Loud frames carry a constant amplitude
// well above the default speech threshold; quiet frames are all zeros.
func makeFrame(audio AudioConfig, seq int, loud bool) Frame {
	pcm := make([]byte, audio.BytesForDurationMs(20))
	if loud {
		for i := 0; i < len(pcm)-1; i += 2 {
			pcm[i] = 0x00
			pcm[i+1] = 0x20 // 8192, RMS ~0.25
		}
	}
	return Frame{Seq: seq, PCM: pcm}
}

type stubEngine struct {
	mu         sync.Mutex
	transcribe func(ctx context.Context, audio []byte) (string, error)
	synthesize func(ctx context.Context, text string) ([]byte, error)

	transcribeCalls int
}

func (e *stubEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	e.mu.Lock()
	e.transcribeCalls++
	fn := e.transcribe
	e.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	return fn(ctx, audio)
}

func (e *stubEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	e.mu.Lock()
	fn := e.synthesize
	e.mu.Unlock()
	if fn == nil {
		// Encode the text as the audio so tests can assert what was played.
		return []byte(text), nil
	}
	return fn(ctx, text)
}

func (e *stubEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcribeCalls
}

type stubReasoner struct {
	reply func(ctx context.Context, history []Entry, utterance, tenant string) (string, error)
}

func (r *stubReasoner) Reply(ctx context.Context, history []Entry, utterance, tenant string) (string, error) {
	if r.reply == nil {
		return "ok", nil
	}
	return r.reply(ctx, history, utterance, tenant)
}

type stubTransport struct {
	mu         sync.Mutex
	played     []string // PlayAudio payloads, as strings
	spoken     []string // Speak texts
	terminated []string
}

func (t *stubTransport) PlayAudio(ctx context.Context, callID string, audio []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.played = append(t.played, string(audio))
	return nil
}

func (t *stubTransport) Speak(ctx context.Context, callID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spoken = append(t.spoken, text)
	return nil
}

func (t *stubTransport) TerminateCall(ctx context.Context, callID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.terminated = append(t.terminated, callID)
	return nil
}

func (t *stubTransport) playedTexts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.played))
	copy(out, t.played)
	return out
}

func (t *stubTransport) terminatedCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.terminated))
	copy(out, t.terminated)
	return out
}

type stubRecorder struct {
	mu      sync.Mutex
	records []ConversationRecord
	saved   chan struct{}
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{saved: make(chan struct{}, 16)}
}

func (r *stubRecorder) SaveConversation(ctx context.Context, rec ConversationRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.saved <- struct{}{}
	return nil
}

func (r *stubRecorder) waitForRecord(t *testing.T) ConversationRecord {
	t.Helper()
	select {
	case <-r.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for conversation record")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) ofType(eventType string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, s.State())
}

func waitForTurn(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Turn() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for turn %d, still %d", want, s.Turn())
}

// speakUtterance feeds loud frames followed by silence so the frame buffer
// declares a boundary. Returns the next sequence number.
func speakUtterance(t *testing.T, reg *Registry, callID string, seq int, audio AudioConfig) int {
	t.Helper()
	for i := 0; i < 10; i++ {
		if err := reg.Dispatch(callID, AudioFrameInput{Frame: makeFrame(audio, seq, true)}); err != nil {
			t.Fatalf("dispatch loud frame: %v", err)
		}
		seq++
	}
	for i := 0; i < 5; i++ {
		if err := reg.Dispatch(callID, AudioFrameInput{Frame: makeFrame(audio, seq, false)}); err != nil {
			t.Fatalf("dispatch quiet frame: %v", err)
		}
		seq++
	}
	return seq
}
