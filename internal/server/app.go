// Package server initializes and runs the auth service: it owns the
// database handle, runs migrations, wires the service layer into the HTTP
// API and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/codementor-ai/auth-service/internal/logging"
	"github.com/codementor-ai/auth-service/internal/server/config"
	"github.com/codementor-ai/auth-service/internal/server/httpapi"
	"github.com/codementor-ai/auth-service/internal/server/metrics"
	"github.com/codementor-ai/auth-service/internal/server/ratelimit"
	"github.com/codementor-ai/auth-service/internal/server/repositories/repomanager"
	"github.com/codementor-ai/auth-service/internal/server/services"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterSweepTick = 5 * time.Minute
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	handler  http.Handler
	sweepers []*ratelimit.MemoryLimiter
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	mtr := metrics.NewMetrics(prometheus.NewRegistry())
	svc := services.NewAuthService(db, rm, cfg, logger, mtr)

	registerLimiter, loginLimiter, sweepers := newLimiters(cfg)

	api := httpapi.New(svc, cfg, logger, mtr, registerLimiter, loginLimiter)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		handler:  api.Router(),
		sweepers: sweepers,
	}, nil
}

// newLimiters picks the limiter backend: Redis when an address is
// configured, otherwise per-process fixed windows. In-process limiters are
// also returned separately so Run can sweep their expired windows.
func newLimiters(cfg *config.Config) (ratelimit.Limiter, ratelimit.Limiter, []*ratelimit.MemoryLimiter) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return ratelimit.NewRedisLimiter(client, ratelimit.RegisterLimit),
			ratelimit.NewRedisLimiter(client, ratelimit.LoginLimit),
			nil
	}
	registerLimiter := ratelimit.NewMemoryLimiter(ratelimit.RegisterLimit)
	loginLimiter := ratelimit.NewMemoryLimiter(ratelimit.LoginLimit)
	return registerLimiter, loginLimiter, []*ratelimit.MemoryLimiter{registerLimiter, loginLimiter}
}

// runLimiterSweeper drops expired limiter windows until ctx is cancelled.
func (app *App) runLimiterSweeper(ctx context.Context) {
	if len(app.sweepers) == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(limiterSweepTick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, l := range app.sweepers {
					l.Sweep()
				}
			}
		}
	}()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.runLimiterSweeper(ctx)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}

	return nil
}
