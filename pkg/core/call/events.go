package call

import "time"

// Event is the interface for observability events emitted by sessions and the
// registry. Sinks receive events fire-and-forget and must never block.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// Sink receives observability events. Emit must return quickly; sessions call
// it inline on their event loop.
type Sink interface {
	Emit(ev Event)
}

// SessionCreatedEvent is emitted when a session is registered.
type SessionCreatedEvent struct {
	CallID string `json:"call_id"`
	Tenant string `json:"tenant,omitempty"`
}

func (e *SessionCreatedEvent) EventType() string { return "session.created" }

// SessionEndedEvent is emitted when a session reaches its terminal state.
type SessionEndedEvent struct {
	CallID   string    `json:"call_id"`
	Reason   EndReason `json:"reason"`
	Turns    int       `json:"turns"`
	Duration time.Duration
}

func (e *SessionEndedEvent) EventType() string { return "session.ended" }

// StateChangedEvent is emitted on every state transition.
type StateChangedEvent struct {
	CallID string `json:"call_id"`
	From   State  `json:"from"`
	To     State  `json:"to"`
	Turn   int    `json:"turn"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// UtteranceCapturedEvent is emitted when the frame buffer completes an
// utterance and hands it to transcription.
type UtteranceCapturedEvent struct {
	CallID     string `json:"call_id"`
	Turn       int    `json:"turn"`
	DurationMs int    `json:"duration_ms"`
	Forced     bool   `json:"forced,omitempty"`
}

func (e *UtteranceCapturedEvent) EventType() string { return "utterance.captured" }

// TurnCompletedEvent is emitted when a full listen-to-speak cycle finishes.
type TurnCompletedEvent struct {
	CallID   string        `json:"call_id"`
	Turn     int           `json:"turn"`
	Duration time.Duration `json:"duration"`
}

func (e *TurnCompletedEvent) EventType() string { return "turn.completed" }

// AdapterErrorEvent is emitted when a speech or reasoning call fails.
type AdapterErrorEvent struct {
	CallID  string    `json:"call_id"`
	Turn    int       `json:"turn"`
	Stage   string    `json:"stage"` // transcribe, reason, speak
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Retry   bool      `json:"retry,omitempty"`
}

func (e *AdapterErrorEvent) EventType() string { return "adapter.error" }

// StaleResultEvent is emitted when a late adapter result or timer is
// discarded because the session has already moved on.
type StaleResultEvent struct {
	CallID     string `json:"call_id"`
	Stage      string `json:"stage"`
	ResultTurn int    `json:"result_turn"`
	Turn       int    `json:"turn"`
	State      State  `json:"state"`
}

func (e *StaleResultEvent) EventType() string { return "result.stale" }

// multiSink fans one event out to several sinks.
type multiSink []Sink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// MultiSink combines sinks; nil entries are skipped.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
