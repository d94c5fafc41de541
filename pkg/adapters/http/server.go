package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// ActivitiesResponse is the body returned by POST /api/messages.
type ActivitiesResponse struct {
	Activities []*domain.Activity `json:"activities"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server exposes a bot over HTTP.
type Server struct {
	adapter *Adapter
	handler bot.Handler
	logger  *slog.Logger
	extra   map[string]http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHandler mounts an additional GET route, e.g. /metrics.
func WithHandler(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.extra[pattern] = h
	}
}

// NewHandler creates the HTTP handler that feeds inbound activities to
// handler through adapter.
func NewHandler(adapter *Adapter, handler bot.Handler, opts ...ServerOption) http.Handler {
	s := &Server{
		adapter: adapter,
		handler: handler,
		logger:  logging.NewNop(),
		extra:   make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/api/messages", s.PostActivity)
	r.Get("/api/conversations/{conversationID}/events", s.SubscribeEvents)
	r.Get("/healthz", s.Health)
	for pattern, h := range s.extra {
		r.Method(http.MethodGet, pattern, h)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostActivity handles POST /api/messages. The turn runs to completion and
// its replies are returned in the response body.
func (s *Server) PostActivity(w http.ResponseWriter, r *http.Request) {
	var act domain.Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid activity: %w", err))
		s.logger.Warn("PostActivity: invalid request body", "error", err)
		return
	}
	if act.Type == "" || act.Conversation.ID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("activity needs type and conversation.id: %w", domain.ErrInvalidActivity))
		return
	}

	replies, err := s.adapter.processRequest(r.Context(), &act, s.handler)
	if err != nil {
		status := statusFor(err)
		s.logger.Error("PostActivity: turn failed", "error", err, "conversation", act.Conversation.ID, "status", status)
		s.writeError(w, status, err)
		return
	}
	if replies == nil {
		replies = []*domain.Activity{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ActivitiesResponse{Activities: replies}); err != nil {
		s.logger.Error("PostActivity: encode response", "error", err)
	}
}

// SubscribeEvents handles GET /api/conversations/{conversationID}/events and
// streams proactive activities as Server-Sent Events.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if strings.TrimSpace(conversationID) == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.adapter.Streams().Subscribe(conversationID)
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidActivity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
