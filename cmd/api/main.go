// Package main is the entrypoint for the greeter API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hellodevops/greeter/internal/config"
	"github.com/hellodevops/greeter/internal/handler"
	"github.com/hellodevops/greeter/internal/metrics"
	"github.com/hellodevops/greeter/internal/middleware"
	"github.com/hellodevops/greeter/internal/migrate"
	"github.com/hellodevops/greeter/internal/repository"
	"github.com/hellodevops/greeter/internal/server"
	"github.com/hellodevops/greeter/migrations"
)

func main() {
	ctx := context.Background()

	// Optional .env; real environment variables win.
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	var repo *repository.Repository
	if cfg.DBEnabled {
		repo, err = openDatabase(ctx, cfg, logger)
		if err != nil {
			logger.Error(
				"failed to initialize database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
	} else {
		logger.Info("database disabled")
	}

	var recorder metrics.Recorder = metrics.NewNoop()
	var snapshotter metrics.Snapshotter
	if cfg.MetricsEnabled {
		inMemory := metrics.NewInMemory()
		recorder, snapshotter = inMemory, inMemory
	}

	deps := routerDeps{
		cfg:         cfg,
		logger:      logger,
		recorder:    recorder,
		snapshotter: snapshotter,
	}
	if repo != nil {
		deps.db = repo
	}
	r := setupRouter(deps)

	srv := server.New(r, cfg.Addr(), server.Options{
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if repo != nil {
		srv.OnShutdown("database", func(ctx context.Context) error {
			return repo.Close()
		})
	}

	logger.Info("starting server",
		"addr", cfg.Addr(),
		"env", cfg.AppEnv,
		"database", cfg.DBEnabled,
		"metrics", cfg.MetricsEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openDatabase connects the data-access layer and applies pending migrations
// when DB_AUTO_MIGRATE is set. It never runs on the request path.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Repository, error) {
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.Options{
		Logger:             logger,
		SlowQueryThreshold: cfg.DBSlowQueryThreshold,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", "dialect", repo.Dialect())

	mgr, err := migrate.New(repo.DB(), migrations.FS, logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	if cfg.DBAutoMigrate {
		applied, err := mgr.Up(ctx)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		logger.Info("migrations applied", "count", applied)
		return repo, nil
	}

	pending, err := mgr.Pending(ctx)
	if err != nil {
		logger.Warn("could not read migration state", "error", err)
	} else if pending > 0 {
		logger.Warn("database has pending migrations", "count", pending)
	}

	return repo, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps leaves db nil when the data-access layer is disabled.
type routerDeps struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          handler.HealthChecker
	recorder    metrics.Recorder
	snapshotter metrics.Snapshotter
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	cfg := deps.cfg
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.Metrics(deps.recorder))

	h := handler.New()
	healthHandler := handler.NewHealthHandler(deps.db, deps.logger)

	r.Get("/", h.Hello)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	if cfg.MetricsEnabled {
		r.Get("/metrics", handler.NewMetricsHandler(deps.snapshotter).Metrics)
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
