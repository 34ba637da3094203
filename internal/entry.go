// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/planpanel/internal/api"
	"github.com/starford/planpanel/internal/gitsync"
	"github.com/starford/planpanel/internal/index"
	"github.com/starford/planpanel/internal/mcpserver"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/plansync"
	"github.com/starford/planpanel/internal/planservice"
	"github.com/starford/planpanel/internal/remote"
	"github.com/starford/planpanel/internal/sse"
	"github.com/starford/planpanel/internal/storage"
	"github.com/starford/planpanel/internal/tui"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// core is the server-side plan stack shared by serve and mcp.
type core struct {
	store *storage.FS
	db    *index.DB
	git   *gitsync.Syncer
	svc   *planservice.Service
}

func openCore(cfg *Config, logger *slog.Logger, extra ...planservice.Option) (*core, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.DailyDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c := &core{store: store, db: db}
	opts := []planservice.Option{
		planservice.WithJournal(cfg.Vault.Journal),
		planservice.WithLogger(logger),
	}
	if cfg.Git.Enabled {
		c.git, err = gitsync.Open(cfg.Vault.Path, gitsync.Config{
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			Push:        cfg.Git.Push,
			Remote:      cfg.Git.Remote,
			SSHKeyPath:  cfg.Git.SSHKeyPath,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init git: %w", err)
		}
		opts = append(opts, planservice.WithCommitter(c.git))
	}
	c.svc = planservice.NewService(store, db, append(opts, extra...)...)
	return c, nil
}

func (c *core) Close() {
	if err := c.db.Close(); err != nil {
		slog.Warn("close index", slog.String("error", err.Error()))
	}
}

// server is the HTTP plan microservice.
type server struct {
	*core
	broker  *sse.Broker
	handler http.Handler
}

func newServer(cfg *Config, logger *slog.Logger) (*server, error) {
	broker := sse.NewBroker(2 * time.Second)
	c, err := openCore(cfg, logger, planservice.WithPublisher(broker))
	if err != nil {
		broker.Close()
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/", api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	return &server{core: c, broker: broker, handler: r}, nil
}

func (s *server) Close() {
	s.broker.Close()
	s.core.Close()
}

// Run starts the plan server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("daily_dir", cfg.Vault.DailyDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("auth", cfg.Auth.AuthEnabled()),
		slog.Bool("git", cfg.Git.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// File watcher feeding the event broker.
	g.Go(func() error {
		err := index.Watch(gCtx, srv.db, srv.store, logger, func(kind string, key plan.Key) {
			srv.broker.PublishPlanEvent(kind, key)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if srv.git != nil {
		g.Go(func() error { return srv.git.Run(gCtx) })
	}

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
		defer cancel()

		logger.Info("Shutting down server...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the plan tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.logOut, app.config.App.LogLevel)
	slog.SetDefault(logger)

	c, err := openCore(app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.git != nil {
		go func() { _ = c.git.Run(ctx) }()
	}

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// panelLogger writes to the configured log file; the terminal belongs to the
// panel.
func panelLogger(cfg PanelConfig, level slog.Level) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return newLogger(io.Discard, level), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open panel log: %w", err)
	}
	return newLogger(f, level), func() { _ = f.Close() }, nil
}

// RunPanel starts the terminal planning panel against a plan server.
func RunPanel(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config.Panel

	logger, closeLog, err := panelLogger(cfg, app.config.App.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := remote.New(cfg.ServerURL,
		remote.WithToken(cfg.Token),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		remote.WithLogger(logger))
	if err != nil {
		return err
	}

	key := plan.KeyFor(time.Now(), cfg.DateOffsetDays)
	store := plansync.NewStore(client, key,
		plansync.WithLogger(logger),
		plansync.WithRequestTimeout(cfg.RequestTimeout))
	defer store.Close()
	sched := plansync.NewScheduler(store, cfg.RefreshInterval)

	logger.Info("panel: starting",
		slog.String("server", cfg.ServerURL),
		slog.String("date", key.String()),
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Bool("live", cfg.Live))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(gCtx) })

	if cfg.Live {
		g.Go(func() error {
			err := client.Listen(gCtx, sched.Trigger, func(ev remote.Event) {
				switch ev.Type {
				case sse.TypePlanCreated, sse.TypePlanUpdated, sse.TypePlanDeleted:
					if ev.Key() == store.Snapshot().Key {
						sched.Trigger()
					}
				}
			})
			if err != nil {
				logger.Warn("panel: live updates stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return tui.Run(gCtx, store,
			tui.WithDateOffset(cfg.DateOffsetDays),
			tui.WithRefresh(sched.Trigger))
	})

	return g.Wait()
}
