// Package http serves an agent over HTTP.
//
// The gateway exposes the dispatcher with the same contract the network
// transport consumes, so one cortex instance can act as a tool backend for
// another:
//
//	GET  /tools                  list tools
//	POST /call_tool              call a tool
//	POST /run                    run a session
//	GET  /events?session_id=...  stream session events (SSE)
//	GET  /healthz, GET /info, GET /metrics
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/sanitize"
	"github.com/aretw0/cortex/pkg/adapters/network"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent is the part of cortex.Agent the gateway needs.
type Agent interface {
	RunSession(ctx context.Context, sessionID, input string) cortex.Result
	Dispatcher() ports.ToolDispatcher
}

// RunRequest is the body of POST /run.
type RunRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

// RunResponse is the body returned by POST /run.
type RunResponse struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Outcome   domain.Outcome    `json:"outcome"`
	Steps     int               `json:"steps"`
	ToolsUsed []string          `json:"tools_used"`
	Vars      map[string]string `json:"vars,omitempty"`
}

// Server handles the gateway routes.
type Server struct {
	Agent    Agent
	Streams  *StreamManager
	Token    string
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*Server)

// WithStreams shares a StreamManager whose Hooks are installed on the agent.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithToken requires a bearer token on the tool and run routes.
func WithToken(token string) Option {
	return func(s *Server) {
		s.Token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for agent.
func NewHandler(agent Agent, opts ...Option) http.Handler {
	s := &Server{
		Agent:    agent,
		logger:   slog.New(slog.DiscardHandler),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Get("/tools", s.ListTools)
		r.Post("/call_tool", s.CallTool)
		r.Post("/run", s.Run)
	})
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

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, network.CallResponse{
				Error: &network.CallError{Code: http.StatusUnauthorized, Message: "unauthorized"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.Agent.Dispatcher().List()
	if tools == nil {
		tools = []domain.Tool{}
	}
	writeJSON(w, http.StatusOK, network.ToolsResponse{Tools: tools})
}

// CallTool handles POST /call_tool.
func (s *Server) CallTool(w http.ResponseWriter, r *http.Request) {
	var body network.CallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, network.CallResponse{Error: &network.CallError{
			Code:    http.StatusBadRequest,
			Message: "invalid request body: " + err.Error(),
			Class:   string(domain.ClassValidation),
		}})
		return
	}
	if body.Params.Name == "" {
		writeJSON(w, http.StatusBadRequest, network.CallResponse{Error: &network.CallError{
			Code:    http.StatusBadRequest,
			Message: "params.name is required",
			Class:   string(domain.ClassValidation),
		}})
		return
	}
	args, err := sanitize.Arguments(body.Params.Arguments)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, network.CallResponse{Error: &network.CallError{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
			Class:   string(domain.ClassValidation),
		}})
		return
	}

	res, err := s.Agent.Dispatcher().Call(r.Context(), body.Params.Name, args)
	if err != nil {
		status, callErr := toCallError(err)
		s.logger.Warn("Tool call failed", "tool", body.Params.Name, "status", status, "err", err)
		writeJSON(w, status, network.CallResponse{Error: callErr})
		return
	}

	result := map[string]any{
		"content": []map[string]any{{"type": "text", "text": res.Text}},
	}
	if res.Structured != nil {
		result["structuredContent"] = res.Structured
	}
	writeJSON(w, http.StatusOK, network.CallResponse{Result: result})
}

// toCallError maps a dispatcher error to a status code and error envelope.
// Tool failures are reported in a 200 envelope, the other classes keep the
// status code the network transport classifies them by.
func toCallError(err error) (int, *network.CallError) {
	if errors.Is(err, domain.ErrToolNotFound) {
		return http.StatusNotFound, &network.CallError{Code: http.StatusNotFound, Message: err.Error(), Class: string(domain.ClassValidation)}
	}

	var te *domain.ToolExecutionError
	if !errors.As(err, &te) {
		return http.StatusInternalServerError, &network.CallError{Code: http.StatusInternalServerError, Message: err.Error()}
	}
	msg := te.Message
	if msg == "" {
		msg = te.Error()
	}

	status := http.StatusOK
	switch te.Class {
	case domain.ClassValidation:
		status = http.StatusUnprocessableEntity
	case domain.ClassRateLimited:
		status = http.StatusTooManyRequests
	case domain.ClassUnavailable:
		status = http.StatusBadGateway
	}
	code := status
	if te.Status != 0 {
		code = te.Status
	}
	return status, &network.CallError{Code: code, Message: msg, Class: string(te.Class)}
}

// Run handles POST /run.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Run: Invalid request body", "err", err)
		return
	}
	input, err := sanitize.Input(strings.TrimSpace(body.Input))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}
	body.Input = input
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}

	res := s.Agent.RunSession(r.Context(), body.SessionID, body.Input)
	tools := res.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	writeJSON(w, http.StatusOK, RunResponse{
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Outcome:   res.Outcome,
		Steps:     res.Steps,
		ToolsUsed: tools,
		Vars:      res.Vars,
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "cortex-http",
		"version": strings.TrimSpace(cortex.Version),
		"tools":   len(s.Agent.Dispatcher().List()),
	})
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session events", "session_id", sessionID)

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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
