package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/cartrewards/service_layer/internal/app"
	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/httpapi"
	"github.com/cartrewards/service_layer/internal/app/kvcache"
	"github.com/cartrewards/service_layer/internal/app/storage/postgres"
	"github.com/cartrewards/service_layer/internal/config"
	"github.com/cartrewards/service_layer/internal/middleware"
	"github.com/cartrewards/service_layer/internal/platform/migrations"
	"github.com/cartrewards/service_layer/pkg/logger"
)

const limiterIdle = 10 * time.Minute

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	handler    http.Handler
	limiter    *middleware.RateLimiter
	cache      kvcache.Cache
	db         *sqlx.DB
}

// NewApplication constructs the process from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	cache, err := OpenCache(context.Background(), cfg.Cache)
	if err != nil {
		closeDB(db, log)
		return nil, fmt.Errorf("open resolver cache: %w", err)
	}

	catalog, err := config.LoadMilestonesOrDefault(cfg.MilestonesPath)
	if err != nil {
		closeDB(db, log)
		_ = kvcache.Close(cache)
		return nil, fmt.Errorf("load milestones: %w", err)
	}

	opts := app.Options{Store: cfg.Store, Catalog: catalog, Cache: cache}
	if cfg.Directory.URL != "" {
		remote, err := NewDirectoryClient(cfg.Directory)
		if err != nil {
			closeDB(db, log)
			_ = kvcache.Close(cache)
			return nil, err
		}
		opts.Directory = remote
		log.WithField("url", cfg.Directory.URL).Info("using remote store directory")
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		closeDB(db, log)
		_ = kvcache.Close(cache)
		return nil, err
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, log.Named("ratelimit"))
	if err := application.Jobs.Add("rate-limit-cleanup", "@every 5m", func(ctx context.Context) error {
		if removed := limiter.Cleanup(limiterIdle); removed > 0 {
			log.WithField("removed", removed).Debug("pruned idle rate limiters")
		}
		return nil
	}); err != nil {
		closeDB(db, log)
		_ = kvcache.Close(cache)
		return nil, err
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		AllowedOrigins: cfg.HTTP.Origins(),
		RateLimiter:    limiter,
		Logger:         log.Named("http"),
		StartedAt:      time.Now(),
	})

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		handler: handler,
		limiter: limiter,
		cache:   cache,
		db:      db,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// App exposes the composed application.
func (a *Application) App() *app.Application { return a.app }

// Handler exposes the HTTP handler, for tests and embedding.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts background services and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown stops the HTTP server and services and releases the database and
// cache.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := kvcache.Close(a.cache); err != nil {
		a.log.WithError(err).Warn("error closing resolver cache")
	}
	closeDB(a.db, a.log)
	return errors.Join(errs...)
}

// OpenCache opens the resolver cache backend named in cfg.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (kvcache.Cache, error) {
	return kvcache.Open(ctx, kvcache.Kind(cfg.Kind), kvcache.Options{
		Path:     cfg.Path,
		RedisURL: cfg.RedisURL,
		Prefix:   cfg.Prefix,
	})
}

// NewDirectoryClient builds the remote directory client from cfg.
func NewDirectoryClient(cfg config.DirectoryConfig) (*directory.HTTPClient, error) {
	client, err := directory.NewHTTPClient(directory.HTTPConfig{
		BaseURL: cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure store directory: %w", err)
	}
	return client, nil
}

// OpenDatabase opens and pings the configured database.
func OpenDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// buildStores returns postgres-backed stores when a database is configured
// and in-memory stores otherwise.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sqlx.DB, error) {
	if !cfg.Database.Enabled() {
		log.Warn("DATABASE_URL not set; store directory is kept in memory")
		return app.Stores{}, nil, nil
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.DSN); err != nil {
			return app.Stores{}, nil, err
		}
	}

	db, err := OpenDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	return app.Stores{Stores: postgres.New(db)}, db, nil
}

func closeDB(db *sqlx.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
