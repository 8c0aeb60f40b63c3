package receipt

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/receipt-ledger/internal/auth"
)

// Server exposes the remote operations over HTTP
type Server struct {
	service   *Service
	issuer    *auth.Issuer
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds the credentials accepted by the token endpoint
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, issuer *auth.Issuer, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, issuer, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, issuer *auth.Issuer, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		issuer:    issuer,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticateBasic checks basic auth credentials and returns the user name.
// Any non-empty user is accepted when no credentials are configured.
func (s *Server) authenticateBasic(r *http.Request) (string, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok || user == "" {
		return "", false
	}
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return user, true
	}
	return user, user == s.basicAuth.Username && pass == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
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

// requireToken verifies the bearer token and puts the user on the context
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="Receipt Ledger"`)
			jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := s.issuer.Verify(value)
		if err != nil {
			slog.Debug("Rejected token", "error", err)
			jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/token", s.handleToken)
	s.mux.HandleFunc("POST /api/invoke/{operation}", s.requireToken(s.handleInvoke))
	s.mux.HandleFunc("GET /api/files/{key...}", s.handleFile)
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
