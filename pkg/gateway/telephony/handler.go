// Package telephony bridges Twilio voice calls onto the call engine. It
// answers webhook callbacks with TwiML, terminates media-stream WebSockets,
// and implements the engine's outbound Transport on top of those streams
// plus the Twilio REST API.
package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/pkg/core/call"
	"github.com/voxbridge/voxbridge/pkg/gateway/lifecycle"
)

// Options configures the handler.
type Options struct {
	// PublicHost is the externally reachable host (no scheme) used to build
	// the wss:// media-stream URL in answering TwiML.
	PublicHost string

	// StreamPath is the WebSocket route the TwiML points at. Default /stream.
	StreamPath string

	// WriteTimeout bounds each outbound WebSocket write. Default 5s.
	WriteTimeout time.Duration

	// MaxMessageBytes limits inbound WebSocket message size. Default 64KiB.
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.StreamPath == "" {
		o.StreamPath = "/stream"
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	return o
}

// Handler owns all Twilio-facing surfaces. It implements call.Transport so
// the registry's sessions can speak back through the media streams it holds.
type Handler struct {
	opts      Options
	registry  *call.Registry
	client    *Client
	lifecycle *lifecycle.Lifecycle
	logger    *slog.Logger

	mu    sync.Mutex
	conns map[string]*streamConn
}

// streamConn is one live media-stream WebSocket. Writes are serialized with
// the mutex; gorilla connections allow only one concurrent writer.
type streamConn struct {
	callSid   string
	streamSid string
	ws        *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *streamConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

// NewHandler creates the Twilio bridge. The registry is attached separately
// with SetRegistry because the registry itself needs this handler as its
// Transport.
func NewHandler(opts Options, client *Client, lc *lifecycle.Lifecycle, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		opts:      opts.withDefaults(),
		client:    client,
		lifecycle: lc,
		logger:    logger,
		conns:     make(map[string]*streamConn),
	}
}

// SetRegistry attaches the session registry. Must be called before serving.
func (h *Handler) SetRegistry(reg *call.Registry) { h.registry = reg }

// HandleVoiceWebhook answers Twilio's incoming-call webhook with TwiML that
// connects the call's media to the gateway's WebSocket endpoint.
func (h *Handler) HandleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	callSid := r.PostFormValue("CallSid")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	if h.lifecycle != nil && h.lifecycle.IsDraining() {
		twiml, err := rejectTwiML("We are unable to take your call right now. Please try again later.")
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write(twiml)
		return
	}

	// The called number identifies the tenant; it is echoed back in the
	// stream's start message via a custom parameter.
	tenant := r.PostFormValue("To")

	wsURL := "wss://" + h.opts.PublicHost + h.opts.StreamPath
	twiml, err := streamTwiML(wsURL, map[string]string{"tenant": tenant})
	if err != nil {
		h.logger.Error("render answer twiml", "call_sid", callSid, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("incoming call",
		"call_sid", callSid, "from", r.PostFormValue("From"), "to", tenant)
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(twiml)
}

// HandleMediaStream terminates one Twilio media-stream WebSocket and pumps
// its events into the session registry.
func (h *Handler) HandleMediaStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.lifecycle != nil && h.lifecycle.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	ws.SetReadLimit(h.opts.MaxMessageBytes)

	var (
		conn *streamConn
		seq  int
	)
	defer func() {
		if conn != nil {
			h.dropConn(conn)
			// Covers abrupt disconnects that never sent a stop event. The
			// session treats a second end input as a no-op.
			_ = h.registry.Dispatch(conn.callSid, call.EndInput{Reason: call.EndReasonHangup})
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Warn("malformed stream message", "error", err)
			continue
		}

		switch msg.Event {
		case eventConnected:
			// Protocol preamble, no payload of interest.

		case eventStart:
			if msg.Start == nil || msg.Start.CallSid == "" {
				h.logger.Warn("start event without call sid")
				return
			}
			conn = &streamConn{
				callSid:      msg.Start.CallSid,
				streamSid:    msg.Start.StreamSid,
				ws:           ws,
				writeTimeout: h.opts.WriteTimeout,
			}
			h.addConn(conn)

			tenant := msg.Start.CustomParameters["tenant"]
			if _, err := h.registry.Create(conn.callSid, tenant); err != nil {
				h.logger.Error("create session", "call_sid", conn.callSid, "error", err)
				return
			}
			if err := h.registry.Dispatch(conn.callSid, call.EstablishedInput{}); err != nil {
				h.logger.Error("establish session", "call_sid", conn.callSid, "error", err)
				return
			}

		case eventMedia:
			if conn == nil || msg.Media == nil {
				continue
			}
			if msg.Media.Track != "" && msg.Media.Track != trackInbound {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				h.logger.Warn("bad media payload", "call_sid", conn.callSid, "error", err)
				continue
			}
			frame := call.Frame{Seq: seq, PCM: DecodeMuLaw(payload)}
			seq++
			if err := h.registry.Dispatch(conn.callSid, call.AudioFrameInput{Frame: frame}); err != nil {
				if call.IsType(err, call.ErrUnknownSession) {
					return
				}
				h.logger.Warn("dispatch frame", "call_sid", conn.callSid, "error", err)
			}

		case eventMark:
			// Playback marks are not used; PlayAudio hands audio off without
			// waiting for the far end to finish.

		case eventStop:
			if conn != nil {
				_ = h.registry.Dispatch(conn.callSid, call.EndInput{Reason: call.EndReasonHangup})
			}
			return
		}
	}
}

// PlayAudio implements call.Transport. PCM is transcoded to mu-law and sent
// as 20ms media frames on the call's stream.
func (h *Handler) PlayAudio(ctx context.Context, callID string, audio []byte) error {
	conn := h.lookupConn(callID)
	if conn == nil {
		return call.NewError(call.ErrUnknownSession, "no media stream for call "+callID)
	}

	mu := EncodeMuLaw(audio)
	for off := 0; off < len(mu); off += mediaFrameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + mediaFrameBytes
		if end > len(mu) {
			end = len(mu)
		}
		payload := base64.StdEncoding.EncodeToString(mu[off:end])
		if err := conn.writeJSON(outboundMedia(conn.streamSid, payload)); err != nil {
			return call.WrapError(call.ErrServiceUnavailable, "write media frame", err)
		}
	}
	return nil
}

// Speak implements call.Transport. It redirects the call to provider-voiced
// TwiML, the degraded path when synthesis is down. The media stream does not
// survive the redirect; the session winds down on its silence timeout.
func (h *Handler) Speak(ctx context.Context, callID, text string) error {
	twiml, err := sayTwiML(text)
	if err != nil {
		return err
	}
	return h.client.UpdateCallTwiML(ctx, callID, twiml)
}

// TerminateCall implements call.Transport.
func (h *Handler) TerminateCall(ctx context.Context, callID string) error {
	if conn := h.lookupConn(callID); conn != nil {
		_ = conn.writeJSON(outboundClear(conn.streamSid))
	}
	return h.client.EndCall(ctx, callID)
}

func (h *Handler) addConn(c *streamConn) {
	h.mu.Lock()
	h.conns[c.callSid] = c
	h.mu.Unlock()
}

func (h *Handler) dropConn(c *streamConn) {
	h.mu.Lock()
	if h.conns[c.callSid] == c {
		delete(h.conns, c.callSid)
	}
	h.mu.Unlock()
}

func (h *Handler) lookupConn(callID string) *streamConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[callID]
}
