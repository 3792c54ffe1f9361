package call

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RegistryDeps bundles the collaborators the registry hands to every session,
// plus the recorder that receives finished conversations.
type RegistryDeps struct {
	Engine    SpeechEngine
	Reasoner  Reasoner
	Transport Transport
	Recorder  Recorder
	Sink      Sink
	Logger    *slog.Logger

	// Greeting selects a per-tenant opening utterance. Optional.
	Greeting func(tenant string) string
}

// SessionInfo is one row of the active-session listing.
type SessionInfo struct {
	CallID       string    `json:"call_id"`
	Tenant       string    `json:"tenant,omitempty"`
	State        State     `json:"state"`
	Turn         int       `json:"turn"`
	LastActivity time.Time `json:"last_activity"`
}

// Registry is the concurrent map of live sessions. It serializes all inputs
// for the same call through that call's session loop while dispatching
// different calls fully in parallel. The map itself is the only structure
// shared across sessions.
type Registry struct {
	cfg  Config
	deps RegistryDeps

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry creates a registry. Sessions created by it share cfg and deps.
func NewRegistry(cfg Config, deps RegistryDeps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a session for a new call. Fails with DuplicateSession if
// one already exists for the call ID.
func (r *Registry) Create(callID, tenant string) (*Session, error) {
	s := newSession(callID, tenant, r.cfg, Deps{
		Engine:    r.deps.Engine,
		Reasoner:  r.deps.Reasoner,
		Transport: r.deps.Transport,
		Sink:      r.deps.Sink,
		Logger:    r.deps.Logger,
		Greeting:  r.deps.Greeting,
	})
	s.onEnded = r.sessionEnded

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, NewError(ErrUnknownSession, "registry shut down")
	}
	if _, ok := r.sessions[callID]; ok {
		r.mu.Unlock()
		return nil, &Error{Type: ErrDuplicateSession, Message: "session already exists", CallID: callID}
	}
	r.sessions[callID] = s
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		s.run()
	}()

	if r.deps.Sink != nil {
		r.deps.Sink.Emit(&SessionCreatedEvent{CallID: callID, Tenant: tenant})
	}
	r.deps.Logger.Info("session created", "call_id", callID, "tenant", tenant)
	return s, nil
}

// Dispatch routes one input to the matching session. Fails with
// UnknownSession if the call is absent; the transport should treat that as
// "already ended" and ignore it.
func (r *Registry) Dispatch(callID string, in Input) error {
	r.mu.RLock()
	s := r.sessions[callID]
	r.mu.RUnlock()

	if s == nil {
		return &Error{Type: ErrUnknownSession, Message: "no live session", CallID: callID}
	}

	if frame, ok := in.(AudioFrameInput); ok {
		return s.enqueueAudio(frame)
	}
	return s.enqueue(in)
}

// Remove ends and removes a session. Idempotent: removing an absent or
// already-ended session is a no-op.
func (r *Registry) Remove(callID string) {
	r.mu.RLock()
	s := r.sessions[callID]
	r.mu.RUnlock()

	if s == nil {
		return
	}
	_ = s.enqueue(EndInput{Reason: EndReasonRemoved})
}

// ListActive enumerates live sessions for observability.
func (r *Registry) ListActive() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{
			CallID:       s.CallID(),
			Tenant:       s.Tenant(),
			State:        s.State(),
			Turn:         s.Turn(),
			LastActivity: s.LastActivity(),
		})
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown ends every session and waits for their loops to exit, or for ctx.
// Returns false if the deadline passed first.
func (r *Registry) Shutdown(ctx context.Context) bool {
	r.mu.Lock()
	r.closed = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		_ = s.enqueue(EndInput{Reason: EndReasonRemoved})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// sessionEnded runs on the session loop during teardown: it removes the
// session from the map and hands the transcript to the recorder without
// blocking teardown on persistence.
func (r *Registry) sessionEnded(s *Session, reason EndReason) {
	r.mu.Lock()
	if r.sessions[s.CallID()] == s {
		delete(r.sessions, s.CallID())
	}
	r.mu.Unlock()

	r.deps.Logger.Info("session ended",
		"call_id", s.CallID(), "reason", string(reason), "turns", s.turn)

	if r.deps.Recorder == nil {
		return
	}
	rec := s.record(reason)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.deps.Recorder.SaveConversation(ctx, rec); err != nil {
			r.deps.Logger.Error("save conversation failed",
				"call_id", rec.CallID, "error", err)
		}
	}()
}
