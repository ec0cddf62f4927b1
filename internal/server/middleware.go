package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calagent/internal/logging"
)

// webhookTokenHeader carries the shared secret voice webhook providers are
// configured to send.
const webhookTokenHeader = "X-Webhook-Token"

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration(logging.KeyDuration, time.Since(start)),
		)
	})
}

// verifyToken rejects agent requests that lack the shared webhook secret.
// Health probes and the root status endpoint stay open so load balancers and
// voice platforms can reach them; when no secret is configured all requests
// pass.
func (s *Server) verifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" && protectedPath(r.URL.Path) {
			if r.Header.Get(webhookTokenHeader) != s.secret {
				s.logger.Warn("rejected request with invalid webhook token",
					slog.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": "Invalid webhook token",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func protectedPath(path string) bool {
	switch path {
	case "/query", "/confirm", "/cancel":
		return true
	}
	return false
}
