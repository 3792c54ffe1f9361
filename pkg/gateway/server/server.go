// Package server assembles the gateway's HTTP surface.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxbridge/voxbridge/pkg/core/call"
	"github.com/voxbridge/voxbridge/pkg/gateway/config"
	"github.com/voxbridge/voxbridge/pkg/gateway/lifecycle"
	"github.com/voxbridge/voxbridge/pkg/gateway/metrics"
	"github.com/voxbridge/voxbridge/pkg/gateway/mw"
	"github.com/voxbridge/voxbridge/pkg/gateway/store"
	"github.com/voxbridge/voxbridge/pkg/gateway/telephony"
)

type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	mux       *http.ServeMux
	lifecycle *lifecycle.Lifecycle
	registry  *call.Registry
	telephony *telephony.Handler
	metrics   *metrics.Metrics
	store     *store.Store // nil when persistence is disabled
}

// Deps are the assembled gateway components the server routes to.
type Deps struct {
	Lifecycle *lifecycle.Lifecycle
	Registry  *call.Registry
	Telephony *telephony.Handler
	Metrics   *metrics.Metrics
	Store     *store.Store
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		lifecycle: deps.Lifecycle,
		registry:  deps.Registry,
		telephony: deps.Telephony,
		metrics:   deps.Metrics,
		store:     deps.Store,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)

	s.mux.HandleFunc("/webhook/voice", s.telephony.HandleVoiceWebhook)
	s.mux.HandleFunc("/stream", s.telephony.HandleMediaStream)

	s.mux.HandleFunc("GET /v1/calls", s.handleListCalls)
	s.mux.HandleFunc("GET /v1/conversations", s.handleListConversations)
	s.mux.HandleFunc("GET /v1/conversations/{id}/messages", s.handleConversationMessages)

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK          bool     `json:"ok"`
		Draining    bool     `json:"draining"`
		ActiveCalls int      `json:"active_calls"`
		Persistence bool     `json:"persistence"`
		Issues      []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	draining := s.lifecycle.IsDraining()
	if draining {
		issues = append(issues, "gateway is draining")
	}
	if s.cfg.PublicHost == "" {
		issues = append(issues, "VOX_PUBLIC_HOST is not set; answering TwiML cannot reference this gateway")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:          ok,
		Draining:    draining,
		ActiveCalls: s.registry.Count(),
		Persistence: s.store != nil,
		Issues:      issues,
	})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	type callResp struct {
		CallID       string `json:"call_id"`
		Tenant       string `json:"tenant,omitempty"`
		State        string `json:"state"`
		Turn         int    `json:"turn"`
		LastActivity string `json:"last_activity"`
	}

	infos := s.registry.ListActive()
	out := make([]callResp, 0, len(infos))
	for _, info := range infos {
		out = append(out, callResp{
			CallID:       info.CallID,
			Tenant:       info.Tenant,
			State:        info.State.String(),
			Turn:         info.Turn,
			LastActivity: info.LastActivity.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"calls": out})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistence disabled", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	convs, err := s.store.RecentConversations(r.Context(), limit)
	if err != nil {
		s.logger.Error("list conversations", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"conversations": convs})
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistence disabled", http.StatusNotImplemented)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	msgs, err := s.store.ConversationMessages(r.Context(), id)
	if err != nil {
		s.logger.Error("list messages", "conversation_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}
