package call

import (
	"context"
	"time"
)

// SpeechEngine abstracts speech-to-text and text-to-speech. Implementations
// live outside the core; the session invokes them with a bounded context and
// maps their typed errors into state transitions.
type SpeechEngine interface {
	// Transcribe converts one utterance of PCM audio to text. An empty
	// transcript with a nil error means the audio contained no usable speech.
	// Fails with EngineUnavailable, Timeout, or UnintelligibleAudio.
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Synthesize converts text to PCM audio in the session's audio format.
	// Fails with EngineUnavailable or Timeout.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Reasoner abstracts reply generation. The tenant context is passed through
// uninterpreted so implementations can select per-customer behavior.
// Fails with ServiceUnavailable, Timeout, or RateLimited.
type Reasoner interface {
	Reply(ctx context.Context, history []Entry, utterance, tenant string) (string, error)
}

// Transport is the outbound half of the call-control boundary. Implementations
// must be safe for concurrent use across sessions.
type Transport interface {
	// Speak asks the telephony provider to render text to the caller using
	// its own voice. Used when synthesis through the speech engine fails.
	Speak(ctx context.Context, callID, text string) error

	// PlayAudio plays synthesized PCM audio to the caller. It returns once
	// playback has been handed to the provider.
	PlayAudio(ctx context.Context, callID string, audio []byte) error

	// TerminateCall hangs up the call.
	TerminateCall(ctx context.Context, callID string) error
}

// Recorder receives the full conversation record when a session ends. The
// registry invokes it fire-and-forget; a slow or failing recorder never
// blocks session teardown.
type Recorder interface {
	SaveConversation(ctx context.Context, rec ConversationRecord) error
}

// ConversationRecord is the complete transcript handed to the Recorder.
type ConversationRecord struct {
	CallID    string
	Tenant    string
	Reason    EndReason
	Turns     int
	StartedAt time.Time
	EndedAt   time.Time
	History   []Entry
}
