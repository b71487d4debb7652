package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dygy/drumorb/internal/config"
	"github.com/dygy/drumorb/internal/oracle"
	"github.com/dygy/drumorb/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// sessionTTL bounds how long an untouched session keeps its audio in memory
const sessionTTL = 30 * time.Minute

// Server is the HTTP server
type Server struct {
	config    config.Config
	router    *chi.Mux
	templates *template.Template
	logger    *slog.Logger
	sessions  *session.Manager
}

// New creates a new server wired to the analysis oracle from cfg
func New(cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	analyzer := oracle.NewClient(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleTimeout)

	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		templates: tmpl,
		logger:    logger,
		sessions:  session.NewManager(analyzer),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	// API
	r.Post("/upload", s.handleUpload)
	r.Get("/session/{id}", s.handleSessionStatus)
	r.Get("/session/{id}/hits", s.handleSessionHits)
	r.Get("/audio/{id}", s.handleAudio)
	r.Get("/download/{id}/midi", s.handleDownloadMIDI)
	r.Get("/live/{id}", s.handleLive)
}

// Run starts the server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go s.sessions.Sweep(sweepCtx, sessionTTL)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		stopSweep()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))
	fmt.Printf("\n  drumorb running at: http://localhost:%d\n\n", s.config.Port)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		stopSweep()
		return err
	}

	<-done
	return nil
}
