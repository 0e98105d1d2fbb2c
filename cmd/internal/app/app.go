// Package app wires the toutlux auth runtime: config, logging, storage,
// HTTP routes, the session event gateway, and the expired-session sweeper.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"toutlux/cmd/identity"
	authapi "toutlux/cmd/internal/auth/api"
	"toutlux/cmd/internal/auth/session"
	dbmigrate "toutlux/cmd/internal/db/migrate"
	"toutlux/cmd/internal/notify"
)

// App is the server runtime: it owns HTTP wiring, the session service,
// and background workers.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions *session.Service
	ws       *notify.WSGateway
	auth     *authapi.Handler
	sweeper  *Sweeper
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var (
		pool      *pgxpool.Pool
		dbEnabled bool
		users     identity.Store
		sessStore session.Store
	)

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := dbmigrate.Run(cfg.DatabaseURL, "up"); err != nil {
				return nil, err
			}
			log.Info("db.migrated")
		}

		p, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}

		pgUsers, err := identity.NewPostgresStore(p)
		if err != nil {
			p.Close()
			return nil, err
		}

		pool = p
		dbEnabled = true
		users = pgUsers
		sessStore = session.NewPostgresStore(p)
		log.Info("db.enabled.postgres_store")
	} else {
		// In-memory mode for dev and tests; sessions and users do not
		// survive a restart.
		users = identity.NewMemoryStore()
		sessStore = session.NewMemoryStore()
		log.Info("db.disabled.inmemory_store")
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	hub := notify.NewHub(log)
	sessions := session.NewService(sessCfg, sessStore, tokens,
		session.WithRevocationNotifier(hub))

	authCfg := authapi.LoadConfigFromEnv()
	var opts []authapi.HandlerOption
	if authCfg.GoogleClientID != "" {
		gv, err := authapi.NewGoogleVerifier(context.Background(), authCfg.GoogleClientID)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, err
		}
		opts = append(opts, authapi.WithGoogleVerifier(gv))
		log.Info("auth.google.enabled")
	}

	auth, err := authapi.NewHandler(log, authCfg, users, sessions, opts...)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		ws:        notify.NewWSGateway(log, hub, sessions),
		auth:      auth,
		sweeper:   NewSweeper(log, sessions, cfg.SweepInterval),
	}, nil
}

// Run starts the HTTP server and background workers, blocking until
// context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go a.sweeper.Run(workerCtx)

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
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	stopWorkers()
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
