// Package server provides the HTTP and WebSocket control surface
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/razor-assistant/ears/internal/errors"
	"github.com/razor-assistant/ears/internal/orchestrator"
	"github.com/razor-assistant/ears/internal/session"
	"github.com/razor-assistant/ears/internal/syncx"
	"github.com/razor-assistant/ears/internal/trace"
)

// Outbound message types.
type TranscriptMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	Source     string  `json:"source"`
}

type PipelineMessage struct {
	Type    string  `json:"type"`
	Keyword string  `json:"keyword,omitempty"`
	Score   float32 `json:"score,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Inbound messages: playback state pushed over the socket.
type inboundMessage struct {
	Type   string `json:"type"` // "playback_started", "playback_finished"
	Reason string `json:"reason,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	orch  *orchestrator.Manager
	conns *syncx.RWGuard[map[*websocket.Conn]*rateLimiter]
}

// New creates a server and starts its broadcasters.
func New(orch *orchestrator.Manager) *Server {
	s := &Server{
		orch:  orch,
		conns: syncx.NewGuard(make(map[*websocket.Conn]*rateLimiter)),
	}

	go s.broadcastTranscripts()
	go s.broadcastEvents()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/playback/block", s.handlePlaybackBlock)
	mux.HandleFunc("POST /api/playback/unblock", s.handlePlaybackUnblock)
	mux.HandleFunc("POST /api/ptt/start", s.handlePTTStart)
	mux.HandleFunc("POST /api/ptt/stop", s.handlePTTStop)
	mux.HandleFunc("POST /api/ptt/cancel", s.handlePTTCancel)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	rl := &rateLimiter{}
	s.conns.Write(func(m *map[*websocket.Conn]*rateLimiter) { (*m)[conn] = rl })
	defer s.conns.Write(func(m *map[*websocket.Conn]*rateLimiter) { delete(*m, conn) })

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg inboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		switch msg.Type {
		case "playback_started":
			reason := msg.Reason
			if reason == "" {
				reason = "playback"
			}
			s.orch.Block(reason)
		case "playback_finished":
			s.orch.Unblock()
		}
	}
}

func (s *Server) broadcastTranscripts() {
	for evt := range s.orch.TranscriptEvents() {
		s.broadcast(TranscriptMessage{
			Type:       "transcript",
			Text:       evt.Text,
			Confidence: evt.Confidence,
			Source:     evt.Source,
		})
	}
}

func (s *Server) broadcastEvents() {
	for evt := range s.orch.Events() {
		s.broadcast(PipelineMessage{
			Type:    evt.Type,
			Keyword: evt.Keyword,
			Score:   evt.Score,
			Reason:  evt.Reason,
		})
	}
}

func (s *Server) broadcast(msg any) {
	s.conns.Read(func(m map[*websocket.Conn]*rateLimiter) any {
		for conn := range m {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		return nil
	})
}

func (s *Server) handlePlaybackBlock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "playback"
	}

	s.orch.Block(body.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func (s *Server) handlePlaybackUnblock(w http.ResponseWriter, r *http.Request) {
	s.orch.Unblock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

func (s *Server) handlePTTStart(w http.ResponseWriter, r *http.Request) {
	h, err := s.orch.Sessions().Start(r.Context())
	if err != nil {
		writeError(w, sessionError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "recording",
		"path":   h.Path,
	})
}

func (s *Server) handlePTTStop(w http.ResponseWriter, r *http.Request) {
	path, err := s.orch.Sessions().Stop(r.Context())
	if err != nil {
		writeError(w, sessionError(err))
		return
	}
	if path == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "path": path})
}

func (s *Server) handlePTTCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Sessions().Cancel(); err != nil {
		writeError(w, sessionError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           s.orch.Mode(),
		"guard_blocked":  s.orch.GuardBlocked(),
		"wake_enabled":   s.orch.WakeEnabled(),
		"session_active": s.orch.Sessions().Active(),
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	seconds := DefaultTranscriptSeconds
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid seconds %q", v))
			return
		}
		seconds = n
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"transcript": s.orch.GetRecentTranscript(seconds),
	})
}

// sessionError maps session sentinels to structured API errors.
func sessionError(err error) *apperrors.AppError {
	switch {
	case err == session.ErrBlocked:
		return apperrors.Wrap(err, apperrors.CodeGuardBlocked, "playback in progress")
	case err == session.ErrActive:
		return apperrors.Wrap(err, apperrors.CodeSessionActive, "session already active")
	case err == session.ErrInactive:
		return apperrors.Wrap(err, apperrors.CodeSessionInactive, "no active session")
	default:
		return apperrors.Wrap(err, apperrors.CodeCaptureFailed, "recording failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	writeJSON(w, err.HTTPStatus(), errorResponse{
		Code:    string(err.Code),
		Message: err.Message,
	})
}
