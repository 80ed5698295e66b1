// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
	"github.com/sigil-dev/claimsgate/pkg/health"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Validator authenticates bearer tokens. Without one every claim
	// endpoint answers 401.
	Validator TokenValidator
	Claims    ClaimService
	// Summary, when set, is reported by /health. A failing summary
	// provider degrades the gateway but never takes it down.
	Summary   health.Reporter
	RateLimit RateLimitConfig
	Version   string
	Logger    *slog.Logger
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router  chi.Router
	api     huma.API
	cfg     Config
	claims  ClaimService
	limiter *rateLimiter
	logger  *slog.Logger

	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, health endpoint, CORS and
// the claim routes.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "listen address is required")
	}
	if cfg.Claims == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "claim service is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Submission runs the automated review inline.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	srv := &Server{
		cfg:     cfg,
		claims:  cfg.Claims,
		limiter: newRateLimiter(cfg.RateLimit, cfg.Logger),
		logger:  cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(srv.limiter.middleware)
	r.Use(authMiddleware(cfg.Validator, cfg.Logger))

	humaConfig := huma.DefaultConfig("claimsgate", cfg.Version)
	humaConfig.Info.Description = "Insurance claims with automated review and human approval"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		body := HealthBody{Status: "ok"}
		if cfg.Summary != nil {
			m := cfg.Summary.Metrics()
			body.Summary = &m
			if !m.Available {
				body.Status = "degraded"
			}
		}
		return &HealthResponse{Body: body}, nil
	})

	srv.router = r
	srv.api = api
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, used to render the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return cgerr.Wrapf(err, cgerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	s.logger.Info("listening", "addr", ln.Addr().String())

	httpSrv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return cgerr.Wrap(err, cgerr.CodeServerStartFailure, "serving http")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return cgerr.Wrap(err, cgerr.CodeServerShutdownFailure, "shutting down")
	}
	return <-errCh
}

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(s.limiter.stop)
	return nil
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string          `json:"status" example:"ok" doc:"ok or degraded"`
	Summary *health.Metrics `json:"summary,omitempty" doc:"Summary provider availability"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
