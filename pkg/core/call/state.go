package call

// State represents the current state of a conversation session.
type State int

const (
	// StateCreated is the initial state before the call is established.
	StateCreated State = iota
	// StateGreeting is when the opening utterance is being synthesized and played.
	StateGreeting
	// StateListening is when caller audio is being captured.
	StateListening
	// StateTranscribing is when buffered caller audio is with the speech engine.
	StateTranscribing
	// StateReasoning is when the reply is being generated.
	StateReasoning
	// StateSpeaking is when the reply is being synthesized and played.
	StateSpeaking
	// StateEnding is when the session is tearing down.
	StateEnding
	// StateEnded is terminal; the session has been removed from the registry.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateGreeting:
		return "GREETING"
	case StateListening:
		return "LISTENING"
	case StateTranscribing:
		return "TRANSCRIBING"
	case StateReasoning:
		return "REASONING"
	case StateSpeaking:
		return "SPEAKING"
	case StateEnding:
		return "ENDING"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// EndReason explains why a session ended.
type EndReason string

const (
	// EndReasonHangup means the transport reported call termination.
	EndReasonHangup EndReason = "hangup"
	// EndReasonSilenceTimeout means no caller speech arrived within the silence window.
	EndReasonSilenceTimeout EndReason = "silence_timeout"
	// EndReasonAdapterFailure means a speech or reasoning adapter failed unrecoverably.
	EndReasonAdapterFailure EndReason = "adapter_failure"
	// EndReasonRemoved means the session was removed administratively.
	EndReasonRemoved EndReason = "removed"
)
