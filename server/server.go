// Package server provides the read-side HTTP API over checkpointed results
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/profscout/pkg/domain"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/profiles.go -pkg mocks -skip-ensure -fmt goimports . ProfileStore
//go:generate moq -out mocks/scores.go -pkg mocks -skip-ensure -fmt goimports . ScoreStore

// Server represents HTTP server instance
type Server struct {
	config   ConfigProvider
	profiles ProfileStore
	scores   ScoreStore
	opts     Options

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ProfileStore loads extraction records
type ProfileStore interface {
	Load(ctx context.Context) ([]domain.ExtractionRecord, error)
}

// ScoreStore loads score records
type ScoreStore interface {
	Load(ctx context.Context) ([]domain.ScoreRecord, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Options holds optional server parts
type Options struct {
	Version   string
	Debug     bool
	ViewerDir string       // static viewer files served at the root, optional
	Metrics   http.Handler // served at /metrics, optional
}

// New initializes a new server instance
func New(cfg ConfigProvider, profiles ProfileStore, scores ScoreStore, opts Options) *Server {
	s := &Server{
		config:   cfg,
		profiles: profiles,
		scores:   scores,
		opts:     opts,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("profscout", "umputun", s.opts.Version))
	s.router.Use(rest.Ping)

	if s.opts.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // read-only api, no bodies expected
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /results", s.resultsHandler)
		r.HandleFunc("GET /profiles", s.profilesHandler)
		r.HandleFunc("GET /scores", s.scoresHandler)
	})

	if s.opts.Metrics != nil {
		s.router.Handle("GET /metrics", s.opts.Metrics)
	}

	if s.opts.ViewerDir != "" {
		s.router.Handle("GET /", http.FileServer(http.Dir(s.opts.ViewerDir)))
	}
}
