package call

import (
	"sync"
	"time"
)

// TurnTimer enforces per-state deadlines for one session. A timer is armed on
// entry to a timed state and cancelled on exit; expiry posts a timerFired
// input back into the session mailbox. Each arm bumps a generation counter so
// a timer that fires concurrently with its cancellation is recognized as
// stale when the loop gets to it.
type TurnTimer struct {
	post func(in Input)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewTurnTimer creates a timer that delivers expiries through post.
func NewTurnTimer(post func(in Input)) *TurnTimer {
	return &TurnTimer{post: post}
}

// Arm schedules an expiry for the given state and turn, replacing any
// previously armed timer.
func (t *TurnTimer) Arm(state State, turn int, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.post(timerFired{state: state, turn: turn, gen: gen})
	})
}

// Cancel stops the armed timer, if any. A fire already in flight is
// invalidated by the generation check.
func (t *TurnTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// valid reports whether a fired generation is still current.
func (t *TurnTimer) valid(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}
