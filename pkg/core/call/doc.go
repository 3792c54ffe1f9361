// Package call implements the conversation engine for real-time voice calls.
//
// Each live call is owned by one Session: a state machine driving the
// listen, transcribe, reason, speak cycle against pluggable speech and
// reasoning adapters. Sessions are held in a Registry that routes
// transport inputs to the right call, serializing all inputs for the same
// call through a per-session mailbox loop while dispatching different
// calls fully in parallel.
//
// Correctness rests on two mechanisms:
//
//   - Serialization: a session never processes two inputs concurrently, so
//     its state, history, and audio buffer need no internal locking.
//   - Turn correlation: adapter calls run in spawned goroutines tagged with
//     the turn index and a task generation; a late or duplicate result is
//     recognized structurally and discarded rather than applied.
//
// The package has no knowledge of the telephony provider, the speech
// engines, or the wire transport; those arrive through the SpeechEngine,
// Reasoner, Transport, and Recorder interfaces.
package call
