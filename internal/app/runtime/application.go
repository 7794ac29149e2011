// Package runtime wires configuration, storage, services and the HTTP server
// into one runnable application.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	app "github.com/openbar/beerexchange/internal/app"
	"github.com/openbar/beerexchange/internal/app/httpapi"
	"github.com/openbar/beerexchange/internal/app/metrics"
	"github.com/openbar/beerexchange/internal/app/services/repricing"
	"github.com/openbar/beerexchange/internal/app/storage"
	"github.com/openbar/beerexchange/internal/app/storage/memory"
	"github.com/openbar/beerexchange/internal/app/storage/sqlstore"
	"github.com/openbar/beerexchange/internal/config"
	"github.com/openbar/beerexchange/internal/middleware"
	"github.com/openbar/beerexchange/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 5 * time.Minute
)

// Application owns the process lifecycle around the wired services.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	server  *http.Server
	limiter *middleware.RateLimiter
}

// NewApplication builds an application from the environment's configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds an application from an explicit configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "beerexchange",
	})

	store, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure storage: %w", err)
	}

	application := app.New(app.Options{
		Store: store,
		Pricing: repricing.Config{
			StepPerUnit: cfg.Pricing.StepPerUnit,
			MinStep:     cfg.Pricing.MinStep,
			RoundTo:     cfg.Pricing.RoundTo,
		},
		Log: log,
	})

	handler := httpapi.NewHandler(application, httpapi.AuthConfig{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
	}, log.WithField("component", "httpapi"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", handler)

	var root http.Handler = metrics.InstrumentHandler(mux)
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RatePerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RatePerSecond, cfg.HTTP.RateBurst, log.WithField("component", "ratelimit"))
		root = limiter.Handler(root)
	}
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		root = middleware.NewCORSMiddleware(cfg.HTTP.AllowedOrigins).Handler(root)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		server:  server,
		limiter: limiter,
	}, nil
}

// App exposes the wired services.
func (a *Application) App() *app.Application {
	return a.app
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.limiter != nil {
		go a.limiter.CleanupLoop(ctx, limiterCleanupInterval, limiterMaxIdle)
	}

	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server and closes the storage backend.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Close(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error closing storage")
	}
	return nil
}

func buildStore(cfg *config.Config, log *logger.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		log.Info("using in-memory storage")
		return memory.New(), nil
	case "postgres", "sqlite":
		store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if !cfg.Database.SkipMigrations {
			if err := store.Migrate(); err != nil {
				store.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		log.WithField("driver", cfg.Database.Driver).Info("database connected")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
