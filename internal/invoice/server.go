package invoice

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

// Server exposes a Session over HTTP
type Server struct {
	session   *Session
	models    []scanning.ModelTier
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds optional deployment-level credentials. It guards the whole
// server and is separate from the session's display-name login.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(session *Session, models []scanning.ModelTier, basicAuth BasicAuth) *Server {
	return NewServerWithMux(session, models, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(session *Session, models []scanning.ModelTier, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		session:   session,
		models:    models,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Extractor"`)
			jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/session", s.requireAuth(s.handleSession))
	s.mux.HandleFunc("POST /api/login", s.requireAuth(s.handleLogin))
	s.mux.HandleFunc("POST /api/logout", s.requireAuth(s.handleLogout))

	s.mux.HandleFunc("GET /api/models", s.requireAuth(s.handleListModels))
	s.mux.HandleFunc("PUT /api/model", s.requireAuth(s.handleSelectModel))

	s.mux.HandleFunc("GET /api/progress", s.requireAuth(s.handleProgress))

	// Most specific paths first
	s.mux.HandleFunc("GET /api/invoices/current/export", s.requireAuth(s.handleExport))
	s.mux.HandleFunc("GET /api/invoices/current/file", s.requireAuth(s.handleSourceFile))
	s.mux.HandleFunc("DELETE /api/invoices/current", s.requireAuth(s.handleReset))
	s.mux.HandleFunc("POST /api/invoices/retry", s.requireAuth(s.handleRetry))
	s.mux.HandleFunc("POST /api/invoices/refine", s.requireAuth(s.handleRefine))
	s.mux.HandleFunc("POST /api/invoices", s.requireAuth(s.handleExtract))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
