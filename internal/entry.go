// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/churryboy/ppt/internal/api"
	"github.com/churryboy/ppt/internal/archive"
	"github.com/churryboy/ppt/internal/artifact"
	"github.com/churryboy/ppt/internal/inbox"
	"github.com/churryboy/ppt/internal/index"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/mcpserver"
	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/render"
	"github.com/churryboy/ppt/internal/search"
	"github.com/churryboy/ppt/internal/sse"
	"github.com/churryboy/ppt/internal/storage"
	"github.com/churryboy/ppt/internal/worker"
)

// app holds the wired components shared by the HTTP server and the MCP server.
type app struct {
	cfg       *Config
	logger    *slog.Logger
	db        *index.DB
	artifacts *artifact.Store
	metrics   *metrics.Metrics
	broker    *sse.Broker
	renderer  render.Renderer
	pool      *worker.Pool
	decks     *ingest.Coordinator
	search    *search.Engine
	archive   *archive.Service
}

func (a *app) close() {
	a.broker.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("close index", slog.String("error", err.Error()))
	}
}

func newApp(opts ...Option) (*app, error) {
	o := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := o.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(o.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("workers", cfg.Workers.Count),
		slog.Int("max_concurrent_renders", cfg.Renderer.MaxConcurrent),
		slog.String("log_level", cfg.App.LogLevel.String()))

	for _, dir := range []string{cfg.Storage.Path, filepath.Dir(cfg.SQLite.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	store, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		if m, err = metrics.New(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	renderer := o.renderer
	if renderer == nil {
		renderer = render.NewSoffice(cfg.Renderer.RenderConfig(), logger)
	}
	if err := renderer.Available(); err != nil {
		// Conversions fail with engine_unavailable until the engine is installed.
		logger.Warn("renderer unavailable", slog.String("error", err.Error()))
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		artifacts: artifact.New(store),
		metrics:   m,
		broker:    sse.NewBroker(2 * time.Second),
		renderer:  renderer,
	}

	a.pool, err = worker.New(worker.Config{
		Workers:    cfg.Workers.Count,
		MaxRenders: cfg.Renderer.MaxConcurrent,
	}, worker.Deps{
		Store:     db,
		Documents: store,
		Artifacts: a.artifacts,
		Renderer:  renderer,
		Notifier:  a.broker,
		Metrics:   a.conversionMetrics(),
		Logger:    logger,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init workers: %w", err)
	}

	a.decks = ingest.New(cfg.Upload.MaxBytes, ingest.Deps{
		Store:     db,
		Documents: store,
		Artifacts: a.artifacts,
		Queue:     a.pool,
		Notifier:  a.broker,
		Metrics:   a.deliveryMetrics(),
		Logger:    logger,
	})
	a.search = search.NewEngine(db, a.searchMetrics())
	a.archive = archive.NewService(db, a.artifacts, a.search, logger)
	return a, nil
}

func (a *app) conversionMetrics() *metrics.ConversionMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Conversion
}

func (a *app) searchMetrics() *metrics.SearchMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Search
}

func (a *app) deliveryMetrics() *metrics.DeliveryMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Delivery
}

// handler builds the root router.
func (a *app) handler() http.Handler {
	apiRouter := api.NewRouter(api.RouterConfig{
		Decks:          a.decks,
		Search:         a.search,
		Archive:        a.archive,
		Artifacts:      a.artifacts,
		Metrics:        a.deliveryMetrics(),
		AuthEnabled:    a.cfg.Auth.AuthEnabled(),
		Token:          a.cfg.Auth.Token,
		MaxUploadBytes: a.cfg.Upload.MaxBytes,
		Events:         a.broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", a.ready)

	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler(a.logger))
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// ready reports 503 while the index or the renderer is unusable.
func (a *app) ready(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok", "index": "ok", "renderer": "ok"}
	status := http.StatusOK
	if err := a.db.Ping(); err != nil {
		body["index"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := a.renderer.Available(); err != nil {
		body["renderer"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeStatus(w, status, body)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	a, err := newApp(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	logger := a.logger

	if cfg.Workers.RecoverOnStart {
		rep, err := a.decks.Recover(ctx)
		if err != nil {
			logger.Warn("startup recovery failed", slog.String("error", err.Error()))
		} else {
			logger.Info("startup recovery complete",
				slog.Int("requeued", rep.Requeued),
				slog.Int("orphan_artifacts", rep.OrphanArtifacts),
				slog.Int("orphan_uploads", rep.OrphanUploads),
				slog.Int("reindexed", rep.Reindexed))
		}
	}

	// The hot folder is set up before any goroutine starts so a bad path
	// fails startup cleanly.
	var inboxWatcher *inbox.Watcher
	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		inboxWatcher, err = inbox.New(inbox.Config{
			Dir:     cfg.Inbox.Path,
			Privacy: cfg.Inbox.PrivacyMode,
		}, a.decks, logger, nil)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Conversion workers.
	g.Go(func() error {
		return a.pool.Run(gCtx)
	})

	// Hot folder.
	if inboxWatcher != nil {
		g.Go(func() error {
			return inboxWatcher.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the read-only MCP tool server on stdin/stdout. Logs go to
// stderr unless WithLogOutput says otherwise.
func ServeMCP(_ context.Context, opts ...Option) error {
	a, err := newApp(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer a.close()

	return mcpserver.New(a.search, a.decks).ServeStdio()
}
