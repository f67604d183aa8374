// Package app wires the photoshare server runtime: config, logging,
// persistence, the session subsystem, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "photoshare/internal/auth/api"
	"photoshare/internal/auth/session"
	"photoshare/internal/auth/token"
	"photoshare/internal/gallery"
	"photoshare/internal/identity"
)

// App owns the HTTP server wiring and the session sweeper lifecycle.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions *session.Service
	auth     *authapi.Handler
	photos   *gallery.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	users, sessStore, photoStore, dbPool, dbEnabled, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer([]byte(sessCfg.JWTSigningKey), sessCfg.Issuer, sessCfg.AccessTokenTTL)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	hasher := token.NewHasher([]byte(sessCfg.RefreshHashKey))
	sessions := session.NewService(sessCfg, users, sessStore, issuer, hasher, log)

	guard := authapi.NewGuard(issuer)
	auth := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), sessions, users, guard)
	photos := gallery.NewHandler(log, users, photoStore, guard)

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		auth:      auth,
		photos:    photos,
	}, nil
}

// Run starts the HTTP server and the expiry sweeper, and blocks until
// context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.photos)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
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
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

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

// newStores decides between Postgres-backed persistence and the
// in-memory dev stores. With a database configured, embedded migrations
// run before any store is handed out.
func newStores(ctx context.Context, cfg Config, log Logger) (identity.Store, session.Store, gallery.PhotoStore, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), session.NewMemoryStore(), gallery.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, false, err
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return identity.NewPostgresStore(pool), session.NewPostgresStore(pool), gallery.NewPostgresStore(pool), pool, true, nil
}
