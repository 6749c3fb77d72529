package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matzehuels/deptree/pkg/deps"
)

const (
	// DefaultWarmupDelay is the delay before a direct lookup's warm-up walk.
	DefaultWarmupDelay = time.Second

	defaultShutdownTimeout = 10 * time.Second
)

// Options configures a [Server].
type Options struct {
	LegacyErrors    bool          // 400 + text/plain for every failure
	WarmupDelay     time.Duration // 0 disables warm-up
	ShutdownTimeout time.Duration // Grace period for in-flight requests (default: 10s)
	CORSOrigins     []string      // Allowed origins; empty disables CORS
	Logger          *log.Logger   // Request and warm-up logging (default: log.Default())
}

// Server is the deptree HTTP API.
type Server struct {
	resolver *deps.Resolver
	opts     Options
	logger   *log.Logger
	warmer   *warmer
	handler  http.Handler
}

// New creates a Server answering with resolver.
func New(resolver *deps.Resolver, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		resolver: resolver,
		opts:     opts,
		logger:   opts.Logger,
	}
	s.warmer = newWarmer(opts.WarmupDelay, s.warm, opts.Logger)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(requestID)
	router.Use(chimiddleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(chimiddleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/healthz", s.handleHealth)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/deps/{pkg}", s.handleDeps)
		r.Get("/deps/{pkg}/{ver}", s.handleDeps)
		r.Get("/alldeps/{pkg}", s.handleAllDeps)
		r.Get("/alldeps/{pkg}/{ver}", s.handleAllDeps)
		r.Get("/graph/{pkg}", s.handleGraph)
		r.Get("/graph/{pkg}/{ver}", s.handleGraph)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errRouteNotFound(r))
	})
	return router
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and cancels pending warm-ups.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("Server running", "addr", "http://"+addr)

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	s.Close()
	return srv.Shutdown(shutdownCtx)
}

// Close cancels pending warm-ups and waits for running ones to stop.
func (s *Server) Close() { s.warmer.close() }

func (s *Server) warm(ctx context.Context, ref deps.PackageRef) error {
	res, err := s.resolver.ResolveTransitive(ctx, ref.Name, ref.Version)
	if err != nil {
		return err
	}
	s.logger.Debug("warm-up complete", "package", ref, "count", len(res))
	return nil
}
