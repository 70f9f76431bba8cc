// Package app wires the ticketd server runtime: configuration, logging,
// persistence, the auth and ticket HTTP surfaces, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	authapi "ticketd/internal/auth/api"
	"ticketd/internal/auth/oauth"
	"ticketd/internal/auth/revocation"
	"ticketd/internal/auth/session"
	"ticketd/internal/db"
	"ticketd/internal/identity"
	"ticketd/internal/security/password"
	"ticketd/internal/ticket"
)

// App owns the server's wired dependencies and their lifecycle.
type App struct {
	cfg Config
	log *slog.Logger

	pool      *pgxpool.Pool
	dbEnabled bool
	rdb       *goredis.Client

	sessions *session.Service
	auth     *authapi.Handler
	tickets  *ticket.Handler
	metrics  *Metrics
}

// New constructs a fully wired App from config.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	ctx := context.Background()

	var (
		pool      *pgxpool.Pool
		dbEnabled bool

		users        identity.Store
		sessionStore session.Store
		ticketStore  ticket.Store
	)
	if cfg.DatabaseURL == "" {
		// Dev fallback: everything lives in process memory.
		log.Info("db.disabled.inmemory_store")
		users = identity.NewInMemoryStore()
		sessionStore = session.NewInMemoryStore()
		ticketStore = ticket.NewInMemoryStore()
	} else {
		if cfg.AutoMigrate {
			if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			log.Info("db.migrations.applied")
		}

		p, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool, dbEnabled = p, true
		log.Info("db.enabled.postgres_store")

		users, err = identity.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		sessionStore, err = session.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		ticketStore, err = ticket.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	var (
		registry revocation.Registry
		rdb      *goredis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		registry = revocation.NewRedisRegistry(rdb)
		log.Info("revocation.redis", "addr", cfg.RedisAddr)
	} else {
		registry = revocation.NewInMemoryRegistry()
		log.Info("revocation.inmemory")
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		closePool(pool)
		return nil, err
	}
	codec, err := session.NewHMACCodec(sessCfg)
	if err != nil {
		closePool(pool)
		return nil, err
	}
	sessions := session.NewService(sessCfg, sessionStore, codec, users, log)

	authCfg := authapi.LoadConfigFromEnv()
	hasher := password.NewHasher(cfg.BcryptCost)

	var authOpts []authapi.HandlerOption
	oauthCfg, err := oauth.LoadConfigFromEnv()
	if err != nil {
		closePool(pool)
		return nil, err
	}
	if oauthCfg.Enabled() {
		ex, err := oauth.NewGoogleExchanger(oauthCfg)
		if err != nil {
			closePool(pool)
			return nil, err
		}
		authOpts = append(authOpts, authapi.WithOAuth(ex))
		log.Info("oauth.google.enabled")
	}

	authHandler, err := authapi.NewHandler(log, authCfg, users, sessions, registry, hasher, authOpts...)
	if err != nil {
		closePool(pool)
		return nil, err
	}

	ticketHandler, err := ticket.NewHandler(log, ticketStore, authCfg.MaxBodyBytes)
	if err != nil {
		closePool(pool)
		return nil, err
	}

	var metrics *Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
	}

	return &App{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		dbEnabled: dbEnabled,
		rdb:       rdb,
		sessions:  sessions,
		auth:      authHandler,
		tickets:   ticketHandler,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server and the session sweeper, then blocks until
// the context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.pool, a.dbEnabled, a.auth, a.tickets, a.metrics)

	var handler http.Handler = mux
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sessions.RunSweeper(sweepCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.close()
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	closePool(a.pool)
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
