package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/internal/metrics"
	"github.com/entitlement-engine/go-core/internal/policy"
	"github.com/entitlement-engine/go-core/pkg/types"
)

// Server is the REST API server hosting the entitlement core
type Server struct {
	policies   policy.Store
	records    lifecycle.Store
	manager    *lifecycle.Manager
	override   *types.IdentityOverride
	metrics    *metrics.Metrics
	router     *mux.Router
	httpServer *http.Server
	logger     *zap.Logger
	config     Config
}

// Config configures the REST API server
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default REST server configuration
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// New creates a REST API server. override may be nil; when set, it applies
// to every session resolved by this server (impersonation mode).
func New(cfg Config, policies policy.Store, records lifecycle.Store, manager *lifecycle.Manager,
	override *types.IdentityOverride, mx *metrics.Metrics, logger *zap.Logger) (*Server, error) {

	if policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("lifecycle manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		policies: policies,
		records:  records,
		manager:  manager,
		override: override,
		metrics:  mx,
		router:   mux.NewRouter(),
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// registerRoutes registers all REST API routes
func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	v1 := s.router.PathPrefix("/v1").Subrouter()

	session := v1.PathPrefix("/session").Subrouter()
	session.HandleFunc("", s.resolveSessionHandler).Methods("POST")
	session.HandleFunc("/version", s.changeVersionHandler).Methods("POST")

	access := v1.PathPrefix("/access").Subrouter()
	access.HandleFunc("/check", s.checkHandler).Methods("POST")
	access.HandleFunc("/permissions", s.featurePermissionsHandler).Methods("POST")

	domains := v1.PathPrefix("/domains").Subrouter()
	domains.HandleFunc("/signup", s.signupDomainsHandler).Methods("GET")
	domains.HandleFunc("/{id}/versions", s.domainVersionsHandler).Methods("GET")
	domains.HandleFunc("/{id}/network", s.domainNetworkHandler).Methods("GET")

	v1.HandleFunc("/versions", s.taggedVersionsHandler).Methods("GET")
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server",
		zap.Int("port", s.config.Port),
		zap.Bool("override_active", s.override != nil),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the REST API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// recoveryMiddleware recovers from panics
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				WriteError(w, http.StatusInternalServerError, "internal", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for request logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}
