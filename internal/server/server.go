package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/teemow/calagent/internal/agent"
)

const (
	// DefaultAddr is the default bind address for the API server.
	DefaultAddr = ":8080"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Config holds the API server configuration.
type Config struct {
	// Addr is the address to bind to, e.g. ":8080".
	Addr string

	// ServiceName is reported by the root status endpoint.
	ServiceName string

	// WebhookSecret, when set, is required in the X-Webhook-Token header of
	// every /query, /confirm and /cancel request.
	WebhookSecret string

	Logger *slog.Logger
}

// Server exposes the agent over HTTP. The surface mirrors what voice webhook
// providers expect: a query endpoint, confirm/cancel endpoints keyed by
// action id, and a root endpoint doubling as status check and single-channel
// voice entry point.
type Server struct {
	agent       *agent.Agent
	health      *HealthChecker
	logger      *slog.Logger
	serviceName string
	secret      string

	httpServer *http.Server
}

// New creates a Server for the given agent.
func New(cfg Config, a *agent.Agent) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "calagent"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		agent:       a,
		health:      NewHealthChecker(),
		logger:      cfg.Logger,
		serviceName: cfg.ServiceName,
		secret:      cfg.WebhookSecret,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	return s
}

// Router builds the HTTP routing table. Exposed separately so tests can
// exercise handlers without binding a socket.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.verifyToken)

	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/confirm", s.handleConfirm).Methods(http.MethodPost)
	r.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	r.Handle("/healthz", s.health.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", s.health.ReadinessHandler()).Methods(http.MethodGet)

	return r
}

// Start runs the server until it fails or is shut down. Call in a goroutine
// for non-blocking operation.
func (s *Server) Start() error {
	s.logger.Info("starting api server", slog.String("addr", s.httpServer.Addr))
	s.health.SetReady(true)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	s.health.SetShuttingDown()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// statusResponse is the root endpoint's status payload.
type statusResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	PendingActions int    `json:"pending_actions"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query string

	if r.Method == http.MethodPost {
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"type":  "error",
				"error": "Missing 'query' field in request",
			})
			return
		}
		query = body.Query
	} else {
		query = r.URL.Query().Get("query")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"type":  "error",
				"error": "Missing 'query' parameter in URL",
			})
			return
		}
	}

	resp, status := s.agent.HandleQuery(r.Context(), query)
	writeJSON(w, status, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	actionID := r.URL.Query().Get("action_id")
	if actionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing action_id parameter",
		})
		return
	}

	resp, status := s.agent.HandleConfirm(r.Context(), actionID)
	writeJSON(w, status, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	actionID := r.URL.Query().Get("action_id")
	if actionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing action_id parameter",
		})
		return
	}

	resp, status := s.agent.HandleCancel(r.Context(), actionID)
	writeJSON(w, status, resp)
}

// handleRoot is a status check, unless a query parameter is present, in
// which case it behaves as the voice entry point: voice platforms can only
// call a single URL and cannot hold an action id across turns.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if query := r.URL.Query().Get("query"); query != "" {
		resp, status := s.agent.HandleVoiceQuery(r.Context(), query)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:         "running",
		Service:        s.serviceName,
		PendingActions: s.agent.PendingCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
