package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/charliek/sidecarhost/internal/constants"
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Host        string
	Port        int
	AuthEnabled bool   // Whether authentication is required
	Token       string // Authentication token (only used if AuthEnabled is true)
	// Metrics serves GET /metrics when set
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server represents the HTTP API server
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	httpServer *http.Server
	handlers   *Handlers
	listener   net.Listener
	mu         sync.Mutex
}

// NewServer creates a new API server
func NewServer(config ServerConfig, handlers *Handlers) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(config.Logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	// CORS - restricted to localhost only for security
	r.Use(corsMiddleware())

	s := &Server{
		config:   config,
		router:   r,
		handlers: handlers,
	}

	// Register routes
	s.registerRoutes()

	return s
}

// corsMiddleware returns a CORS middleware restricted to localhost
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			// Only allow localhost origins
			if isLocalhostOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isLocalhostOrigin checks if the origin is from localhost.
// It validates that the origin is exactly a localhost address (with optional port).
func isLocalhostOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	// Allow common localhost patterns with optional port
	// Match: http://localhost, http://localhost:3000, https://localhost, etc.
	localhostPrefixes := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"http://[::1]",
		"https://[::1]",
	}

	for _, prefix := range localhostPrefixes {
		if origin == prefix {
			return true
		}
		// Check for origin with port (prefix followed by ":")
		if strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// authMiddleware returns an authentication middleware
func authMiddleware(authEnabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if not enabled
			if !authEnabled {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"missing authorization header","code":"UNAUTHORIZED"}`))
				return
			}

			// Expect "Bearer <token>" format
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid authorization header format","code":"UNAUTHORIZED"}`))
				return
			}

			providedToken := strings.TrimPrefix(authHeader, prefix)
			// Use constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(providedToken), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid token","code":"UNAUTHORIZED"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	// Health check at root (no auth required)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.config.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.config.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Apply auth middleware to all API routes (only if auth is enabled)
		r.Use(authMiddleware(s.config.AuthEnabled, s.config.Token))

		// Streaming is not bounded by the request timeout
		r.Get("/logs/stream", s.handlers.StreamLogs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(constants.DefaultRequestTimeout))

			r.Get("/status", s.handlers.GetStatus)
			r.Get("/greet", s.handlers.Greet)

			// Sidecar control
			r.Post("/sidecar/start", s.handlers.StartSidecar)
			r.Post("/sidecar/stop", s.handlers.StopSidecar)

			r.Get("/logs", s.handlers.GetLogs)

			r.Post("/shutdown", s.handlers.Shutdown)
		})
	})
}

// Listen binds the server's address. A zero port picks a free one, which
// Addr reports afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}

	s.mu.Lock()
	s.listener = ln
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.config.Port = tcp.Port
	}
	s.mu.Unlock()
	return nil
}

// Start serves requests until Shutdown, binding first if Listen was not called
func (s *Server) Start() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable for SSE
		IdleTimeout:  60 * time.Second,
	}
	server := s.httpServer
	ln = s.listener
	s.mu.Unlock()

	return server.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr returns the server address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Port returns the bound port (the configured one until Listen succeeds)
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Port
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}
