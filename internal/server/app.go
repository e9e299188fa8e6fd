// Package server assembles the authentication server: it opens the store,
// picks the rate-limit counter backend, wires the services into the HTTP
// layer and runs until the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/audit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/counters"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/ratelimit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/security"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/services"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/web"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/redis/go-redis/v9"
)

const (
	maintenanceInterval = 5 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

// purger is implemented by counter backends that need explicit cleanup.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *dbx.Store
	counter  counters.Counter
	sessions *services.SessionService
	web      *web.Server
	closers  []func() error
}

// NewApp opens every backend named by c and wires the HTTP layer. Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger, err := logging.New(c.LogFormat, w)
	if err != nil {
		return nil, err
	}

	store, err := dbx.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, store: store, closers: []func() error{store.Close}}

	rm := repomanager.NewSQLRepositoryManager(store.Dialect())
	if err := rm.RunMigrations(ctx, store.DB()); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	counter, closeCounter, err := newCounter(ctx, c, store, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.counter = counter
	if closeCounter != nil {
		app.closers = append(app.closers, closeCounter)
	}

	now := timex.UTCNow
	toolkit := security.NewToolkit(c)
	trail := audit.NewTrail(store.DB(), rm, logger)
	limiter := ratelimit.New(counter,
		ratelimit.WithFailMode(failMode(c.RateLimitFailMode)),
		ratelimit.WithLogger(logger),
		ratelimit.WithAuditor(trail),
	)
	app.sessions = services.NewSessionService(store.DB(), rm, c, now)
	authSvc := services.NewAuthService(store.DB(), rm, app.sessions, toolkit, limiter, trail, logger, c, now)

	app.web = web.New(web.Deps{
		Auth:     authSvc,
		Sessions: app.sessions,
		Toolkit:  toolkit,
		Trail:    trail,
		Store:    store,
		Log:      logger,
		Config:   c,
	})
	return app, nil
}

func failMode(mode string) ratelimit.FailMode {
	if mode == config.FailOpen {
		return ratelimit.FailOpen
	}
	return ratelimit.FailClosed
}

// newCounter builds the configured counter backend and, if it holds its own
// connection, the function that closes it.
func newCounter(ctx context.Context, c *config.Config, store *dbx.Store, logger logging.Logger) (counters.Counter, func() error, error) {
	switch c.CounterBackend {
	case config.CounterSQL, "":
		return counters.NewSQLCounter(store.DB(), store.Dialect(), nil), nil, nil
	case config.CounterRedis:
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			// the limiter's fail mode decides what happens while it is down
			logger.Warn(ctx, "redis counter store unreachable at startup", "addr", c.RedisAddr, "error", err)
		}
		return counters.NewRedisCounter(client, nil), client.Close, nil
	case config.CounterBuntDB:
		bc, err := counters.OpenBuntCounter(c.BuntDBPath, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("buntdb init error: %w", err)
		}
		return bc, bc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", c.CounterBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "listening", "addr", app.config.HTTPAddr)
	if err := app.web.Start(app.config.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.purgeExpired(ctx)
		}
	}
}

// purgeExpired drops expired sessions and, for backends without native
// expiry, expired rate-limit buckets.
func (app *App) purgeExpired(ctx context.Context) {
	if n, err := app.sessions.PurgeExpired(ctx); err != nil {
		app.logger.Warn(ctx, "session purge failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "expired sessions purged", "count", n)
	}

	if p, ok := app.counter.(purger); ok {
		if n, err := p.PurgeExpired(ctx); err != nil {
			app.logger.Warn(ctx, "rate limit purge failed", "error", err)
		} else if n > 0 {
			app.logger.Info(ctx, "expired rate limit buckets purged", "count", n)
		}
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// shuts the HTTP server down and releases the backends.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)
	app.purgeExpired(ctx)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.runMaintenance(ctx)
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := app.web.Shutdown(shutdownCtx)

	wg.Wait()
	app.close()
	return err
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}
