package call

import (
	"testing"
	"time"
)

func TestTurnTimer_FiresWithCurrentGeneration(t *testing.T) {
	fired := make(chan timerFired, 1)
	timer := NewTurnTimer(func(in Input) {
		if tf, ok := in.(timerFired); ok {
			fired <- tf
		}
	})

	timer.Arm(StateListening, 3, 10*time.Millisecond)

	select {
	case tf := <-fired:
		if tf.state != StateListening || tf.turn != 3 {
			t.Fatalf("fired with state=%s turn=%d", tf.state, tf.turn)
		}
		if !timer.valid(tf.gen) {
			t.Fatal("fire from current arm reported stale")
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTurnTimer_CancelInvalidates(t *testing.T) {
	fired := make(chan timerFired, 1)
	timer := NewTurnTimer(func(in Input) {
		if tf, ok := in.(timerFired); ok {
			fired <- tf
		}
	})

	timer.Arm(StateReasoning, 0, 10*time.Millisecond)
	timer.Cancel()

	select {
	case tf := <-fired:
		// The fire may have been in flight; it must at least be stale.
		if timer.valid(tf.gen) {
			t.Fatal("cancelled timer fire reported valid")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTurnTimer_RearmInvalidatesPrevious(t *testing.T) {
	fired := make(chan timerFired, 4)
	timer := NewTurnTimer(func(in Input) {
		if tf, ok := in.(timerFired); ok {
			fired <- tf
		}
	})

	timer.Arm(StateTranscribing, 1, 10*time.Millisecond)
	timer.Arm(StateTranscribing, 2, 20*time.Millisecond)

	deadline := time.After(time.Second)
	for {
		select {
		case tf := <-fired:
			if timer.valid(tf.gen) {
				if tf.turn != 2 {
					t.Fatalf("valid fire carries turn %d, want 2", tf.turn)
				}
				return
			}
			// Stale fire from the first arm; keep waiting for the second.
		case <-deadline:
			t.Fatal("re-armed timer never fired")
		}
	}
}
