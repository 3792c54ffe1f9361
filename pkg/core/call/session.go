package call

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Input is a transport- or timer-originated event routed to one session.
// All inputs for a call are processed serially by the session loop.
type Input interface {
	isInput()
}

// EstablishedInput reports that the call has been answered and media is
// flowing. Triggers the greeting.
type EstablishedInput struct{}

func (EstablishedInput) isInput() {}

// AudioFrameInput carries one inbound caller audio frame.
type AudioFrameInput struct {
	Frame Frame
}

func (AudioFrameInput) isInput() {}

// BoundaryHintInput is an optional external end-of-utterance signal. The
// session's own detector remains authoritative; the hint forces a boundary
// only if speech has been captured.
type BoundaryHintInput struct{}

func (BoundaryHintInput) isInput() {}

// EndInput reports call termination from the transport. It takes priority
// over in-flight adapter work; late results are discarded by turn and state
// checks when they arrive.
type EndInput struct {
	Reason EndReason
}

func (EndInput) isInput() {}

// adapterDone delivers the result of a speech or reasoning call back into
// the session loop, tagged with the turn and task generation that started it.
type adapterDone struct {
	stage string
	turn  int
	task  uint64
	text  string
	err   error
}

func (adapterDone) isInput() {}

// timerFired delivers a TurnTimer expiry.
type timerFired struct {
	state State
	turn  int
	gen   uint64
}

func (timerFired) isInput() {}

const (
	stageGreet      = "greet"
	stageTranscribe = "transcribe"
	stageReason     = "reason"
	stageSpeak      = "speak"
)

// Deps bundles the collaborators a session drives. Transport and Sink must be
// safe for concurrent use across sessions.
type Deps struct {
	Engine    SpeechEngine
	Reasoner  Reasoner
	Transport Transport
	Sink      Sink
	Logger    *slog.Logger

	// Greeting selects a per-tenant opening utterance. Optional; when nil or
	// returning "", Config.Greeting is used.
	Greeting func(tenant string) string
}

// Session is the state machine for one call. It owns its frame buffer, turn
// counter, and conversation history, and drives the speech and reasoning
// adapters. All state below the mailbox is owned by the run loop; nothing
// outside the loop touches it.
type Session struct {
	id     string
	tenant string
	cfg    Config
	deps   Deps

	mailbox chan Input
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned state.
	state       State
	turn        int
	frames      *FrameBuffer
	history     *history
	timer       *TurnTimer
	failures    int    // consecutive transcription failures this turn
	retryAudio  []byte // utterance retained for the single permitted retry
	taskGen     uint64
	taskCancel  context.CancelFunc
	turnStarted time.Time
	endReason   EndReason

	// Snapshot fields readable outside the loop.
	mu           sync.Mutex
	snapState    State
	snapTurn     int
	lastActivity time.Time
	createdAt    time.Time

	// onEnded is set by the registry before the loop starts; it runs on the
	// session loop as the last act before the terminal state.
	onEnded func(s *Session, reason EndReason)
}

func newSession(id, tenant string, cfg Config, deps Deps) *Session {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	now := time.Now()

	s := &Session{
		id:           id,
		tenant:       tenant,
		cfg:          cfg,
		deps:         deps,
		mailbox:      make(chan Input, cfg.MailboxSize),
		done:         make(chan struct{}),
		state:        StateCreated,
		frames:       NewFrameBuffer(cfg),
		history:      newHistory(),
		snapState:    StateCreated,
		lastActivity: now,
		createdAt:    now,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.timer = NewTurnTimer(s.post)
	return s
}

// CallID returns the call identifier.
func (s *Session) CallID() string { return s.id }

// Tenant returns the opaque tenant context.
func (s *Session) Tenant() string { return s.tenant }

// State returns the current state as observed outside the loop.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapState
}

// Turn returns the completed-turn count as observed outside the loop.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapTurn
}

// LastActivity returns the time of the most recently processed input.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// run is the session loop. Exactly one goroutine executes it.
func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case in := <-s.mailbox:
			s.handle(in)
			if s.state == StateEnded {
				return
			}
		}
	}
}

// post delivers an internal input, giving up if the session has ended.
func (s *Session) post(in Input) {
	select {
	case <-s.done:
	case s.mailbox <- in:
	}
}

// enqueue delivers a control input from the transport. Blocks until the
// mailbox has room or the session ends.
func (s *Session) enqueue(in Input) error {
	select {
	case <-s.done:
		return NewError(ErrUnknownSession, "session ended")
	case s.mailbox <- in:
		return nil
	}
}

// enqueueAudio delivers an audio frame, dropping it if the mailbox is full.
// Dropping audio under pressure beats stalling the transport's read loop.
func (s *Session) enqueueAudio(in AudioFrameInput) error {
	select {
	case <-s.done:
		return NewError(ErrUnknownSession, "session ended")
	case s.mailbox <- in:
		return nil
	default:
		s.deps.Logger.Warn("mailbox full, dropping audio frame",
			"call_id", s.id, "seq", in.Frame.Seq)
		return nil
	}
}

func (s *Session) handle(in Input) {
	s.touch()

	switch ev := in.(type) {
	case EstablishedInput:
		s.handleEstablished()
	case AudioFrameInput:
		s.handleFrame(ev.Frame)
	case BoundaryHintInput:
		s.handleBoundaryHint()
	case EndInput:
		s.finish(ev.Reason, false)
	case adapterDone:
		s.handleAdapterDone(ev)
	case timerFired:
		s.handleTimerFired(ev)
	}
}

func (s *Session) handleEstablished() {
	if s.state != StateCreated {
		return
	}

	greeting := s.cfg.Greeting
	if s.deps.Greeting != nil {
		if g := s.deps.Greeting(s.tenant); g != "" {
			greeting = g
		}
	}
	if greeting == "" {
		s.beginListening()
		return
	}

	s.history.append(SpeakerAssistant, greeting, time.Now())
	s.setState(StateGreeting)
	s.timer.Arm(StateGreeting, s.turn, s.cfg.SpeakTimeout)
	s.startSpeak(stageGreet, greeting)
}

func (s *Session) handleFrame(f Frame) {
	if s.state != StateListening {
		// Keep the sequence contiguous; the payload is not captured while
		// the session is greeting, thinking, or speaking.
		if err := s.frames.Observe(f); err != nil {
			s.deps.Logger.Warn("out-of-order frame", "call_id", s.id, "error", err)
		}
		return
	}

	utterance, boundary, err := s.frames.Push(f)
	if err != nil {
		s.deps.Logger.Warn("out-of-order frame", "call_id", s.id, "error", err)
		return
	}
	if boundary {
		forced := s.cfg.Audio.DurationMs(len(utterance)) >= int(s.cfg.MaxUtterance.Milliseconds())
		s.captureUtterance(utterance, forced)
	}
}

func (s *Session) handleBoundaryHint() {
	if s.state != StateListening {
		return
	}
	if utterance, ok := s.frames.ForceBoundary(); ok {
		s.captureUtterance(utterance, false)
	}
}

// captureUtterance hands buffered audio to transcription and starts the turn.
func (s *Session) captureUtterance(audio []byte, forced bool) {
	s.turnStarted = time.Now()
	s.failures = 0
	s.retryAudio = audio

	s.emit(&UtteranceCapturedEvent{
		CallID:     s.id,
		Turn:       s.turn,
		DurationMs: s.cfg.Audio.DurationMs(len(audio)),
		Forced:     forced,
	})

	s.setState(StateTranscribing)
	s.timer.Arm(StateTranscribing, s.turn, s.cfg.TranscribeTimeout)
	s.startTranscribe(audio)
}

func (s *Session) startTranscribe(audio []byte) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TranscribeTimeout)
	s.taskCancel = cancel
	s.taskGen++
	turn, task := s.turn, s.taskGen

	go func() {
		defer cancel()
		text, err := s.deps.Engine.Transcribe(ctx, audio)
		s.post(adapterDone{stage: stageTranscribe, turn: turn, task: task, text: text, err: err})
	}()
}

func (s *Session) startReason(utterance string) {
	snap := s.history.snapshot()
	prior := snap[:len(snap)-1] // the utterance itself was just appended

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ReasonTimeout)
	s.taskCancel = cancel
	s.taskGen++
	turn, task := s.turn, s.taskGen

	go func() {
		defer cancel()
		text, err := s.deps.Reasoner.Reply(ctx, prior, utterance, s.tenant)
		s.post(adapterDone{stage: stageReason, turn: turn, task: task, text: text, err: err})
	}()
}

func (s *Session) startSpeak(stage, text string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SpeakTimeout)
	s.taskCancel = cancel
	s.taskGen++
	turn, task := s.turn, s.taskGen

	go func() {
		defer cancel()
		err := s.speakOnce(ctx, text)
		s.post(adapterDone{stage: stage, turn: turn, task: task, err: err})
	}()
}

// speakOnce synthesizes text and plays it. If synthesis fails, the
// provider's own voice is the backstop so the caller is not left in silence.
func (s *Session) speakOnce(ctx context.Context, text string) error {
	audio, err := s.deps.Engine.Synthesize(ctx, text)
	if err == nil {
		return s.deps.Transport.PlayAudio(ctx, s.id, audio)
	}
	s.deps.Logger.Warn("synthesis failed, falling back to provider voice",
		"call_id", s.id, "error", err)
	if serr := s.deps.Transport.Speak(ctx, s.id, text); serr == nil {
		return nil
	}
	return err
}

func (s *Session) handleAdapterDone(ev adapterDone) {
	if ev.turn != s.turn || ev.task != s.taskGen || s.state != stateForStage(ev.stage) {
		s.emit(&StaleResultEvent{
			CallID:     s.id,
			Stage:      ev.stage,
			ResultTurn: ev.turn,
			Turn:       s.turn,
			State:      s.state,
		})
		return
	}

	s.timer.Cancel()
	s.taskCancel = nil

	switch ev.stage {
	case stageTranscribe:
		s.handleTranscript(ev.text, ev.err)
	case stageReason:
		s.handleReply(ev.text, ev.err)
	case stageSpeak:
		s.handleSpoken(ev.err)
	case stageGreet:
		s.handleGreeted(ev.err)
	}
}

func (s *Session) handleTranscript(text string, err error) {
	if err != nil && IsType(err, ErrUnintelligibleAudio) {
		// Same treatment as an empty transcript: noise, not a turn.
		err = nil
		text = ""
	}

	if err != nil {
		retry := s.failures == 0
		s.failures++
		s.emit(&AdapterErrorEvent{
			CallID: s.id, Turn: s.turn, Stage: stageTranscribe,
			Type: TypeOf(err), Message: err.Error(), Retry: retry,
		})
		if !retry {
			s.finish(EndReasonAdapterFailure, true)
			return
		}
		// One immediate retry with the same utterance; the caller is
		// already waiting, so no backoff.
		s.timer.Arm(StateTranscribing, s.turn, s.cfg.TranscribeTimeout)
		s.startTranscribe(s.retryAudio)
		return
	}

	s.retryAudio = nil

	if text == "" {
		// Noise or a false boundary; skip the reasoning round-trip.
		s.beginListening()
		return
	}

	s.history.append(SpeakerCaller, text, time.Now())
	s.setState(StateReasoning)
	s.timer.Arm(StateReasoning, s.turn, s.cfg.ReasonTimeout)
	s.startReason(text)
}

func (s *Session) handleReply(text string, err error) {
	if err != nil {
		// Reasoning failures are never retried; the fallback utterance is
		// spoken so the caller is not left in silence.
		s.emit(&AdapterErrorEvent{
			CallID: s.id, Turn: s.turn, Stage: stageReason,
			Type: TypeOf(err), Message: err.Error(),
		})
		text = s.cfg.FallbackUtterance
	}

	s.history.append(SpeakerAssistant, text, time.Now())
	s.setState(StateSpeaking)
	s.timer.Arm(StateSpeaking, s.turn, s.cfg.SpeakTimeout)
	s.startSpeak(stageSpeak, text)
}

func (s *Session) handleSpoken(err error) {
	if err != nil {
		s.emit(&AdapterErrorEvent{
			CallID: s.id, Turn: s.turn, Stage: stageSpeak,
			Type: TypeOf(err), Message: err.Error(),
		})
		s.finish(EndReasonAdapterFailure, true)
		return
	}

	s.emit(&TurnCompletedEvent{
		CallID:   s.id,
		Turn:     s.turn,
		Duration: time.Since(s.turnStarted),
	})
	s.turn++
	s.mu.Lock()
	s.snapTurn = s.turn
	s.mu.Unlock()
	s.beginListening()
}

func (s *Session) handleGreeted(err error) {
	if err != nil {
		s.emit(&AdapterErrorEvent{
			CallID: s.id, Turn: s.turn, Stage: stageGreet,
			Type: TypeOf(err), Message: err.Error(),
		})
		s.finish(EndReasonAdapterFailure, true)
		return
	}
	s.beginListening()
}

func (s *Session) handleTimerFired(tf timerFired) {
	if !s.timer.valid(tf.gen) || tf.turn != s.turn || tf.state != s.state {
		s.emit(&StaleResultEvent{
			CallID:     s.id,
			Stage:      "timer",
			ResultTurn: tf.turn,
			Turn:       s.turn,
			State:      s.state,
		})
		return
	}

	if s.state == StateListening {
		s.finish(EndReasonSilenceTimeout, true)
		return
	}

	// Expiry while an adapter call is outstanding: cancel it and route a
	// timeout through the normal error handling for that stage. The real
	// result, when it arrives, fails the task-generation check.
	if s.taskCancel != nil {
		s.taskCancel()
	}
	s.taskGen++
	timeout := NewError(ErrTimeout, s.state.String()+" deadline exceeded")
	s.timer.Cancel()
	s.taskCancel = nil

	switch s.state {
	case StateGreeting:
		s.handleGreeted(timeout)
	case StateTranscribing:
		s.handleTranscript("", timeout)
	case StateReasoning:
		s.handleReply("", timeout)
	case StateSpeaking:
		s.handleSpoken(timeout)
	}
}

func (s *Session) beginListening() {
	s.frames.Reset()
	s.setState(StateListening)
	s.timer.Arm(StateListening, s.turn, s.cfg.SilenceTimeout)
}

// finish tears the session down. hangup is true when the session itself is
// ending the call (timeouts, fatal adapter errors) and the provider must be
// told; it is false when the transport already reported termination.
func (s *Session) finish(reason EndReason, hangup bool) {
	if s.state == StateEnding || s.state == StateEnded {
		return
	}

	s.endReason = reason
	s.setState(StateEnding)
	s.timer.Cancel()
	if s.taskCancel != nil {
		s.taskCancel()
		s.taskCancel = nil
	}
	s.cancel()

	if hangup {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.deps.Transport.TerminateCall(ctx, s.id); err != nil {
			s.deps.Logger.Warn("terminate call failed", "call_id", s.id, "error", err)
		}
		cancel()
	}

	if s.onEnded != nil {
		s.onEnded(s, reason)
	}

	s.setState(StateEnded)
	s.emit(&SessionEndedEvent{
		CallID:   s.id,
		Reason:   reason,
		Turns:    s.turn,
		Duration: time.Since(s.createdAt),
	})
	close(s.done)
}

// record assembles the conversation record for persistence. Called from
// onEnded, on the session loop, so the history is final.
func (s *Session) record(reason EndReason) ConversationRecord {
	return ConversationRecord{
		CallID:    s.id,
		Tenant:    s.tenant,
		Reason:    reason,
		Turns:     s.turn,
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
		History:   s.history.snapshot(),
	}
}

func (s *Session) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.mu.Lock()
	s.snapState = to
	s.mu.Unlock()

	s.deps.Logger.Debug("state changed",
		"call_id", s.id, "from", from.String(), "to", to.String(), "turn", s.turn)
	s.emit(&StateChangedEvent{CallID: s.id, From: from, To: to, Turn: s.turn})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	if s.deps.Sink != nil {
		s.deps.Sink.Emit(ev)
	}
}

func stateForStage(stage string) State {
	switch stage {
	case stageGreet:
		return StateGreeting
	case stageTranscribe:
		return StateTranscribing
	case stageReason:
		return StateReasoning
	case stageSpeak:
		return StateSpeaking
	default:
		return StateEnded
	}
}
