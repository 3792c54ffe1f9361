package call

import "time"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	// SpeakerCaller is the human on the phone.
	SpeakerCaller Speaker = "caller"
	// SpeakerAssistant is the agent.
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one utterance in a conversation history.
type Entry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// history is the append-only conversation log for one session. It is owned by
// the session loop; snapshots are taken before handing it to adapters or the
// recorder so later appends never race with readers.
type history struct {
	entries []Entry
}

func newHistory() *history {
	return &history{entries: make([]Entry, 0, 16)}
}

func (h *history) append(speaker Speaker, text string, at time.Time) {
	h.entries = append(h.entries, Entry{Speaker: speaker, Text: text, Timestamp: at})
}

func (h *history) len() int { return len(h.entries) }

// snapshot returns a copy of the entries in insertion order.
func (h *history) snapshot() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}
