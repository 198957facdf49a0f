// Package main is the entry point for the PortPilot portal API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/portpilot/portal/internal/config"
	"github.com/portpilot/portal/internal/handler"
	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/repo"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
	"github.com/portpilot/portal/migrations"
)

// purgeInterval is how often idle sessions are removed.
const purgeInterval = 15 * time.Minute

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// Migrations run through database/sql because goose needs a *sql.DB;
	// everything else uses the pgx pool.
	if err := migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Remote API -------------------------------------------------------
	api := upstream.New(cfg.APIURL, cfg.UpstreamTimeout, upstream.WithLogger(logger))

	// --- Services ---------------------------------------------------------
	sessions := repo.NewSessionRepo(pool)
	prefsRepo := repo.NewPreferenceRepo(pool)

	options := service.NewOptionService(api, logger)
	stores := service.StoresFunc(func(endpoint string, creds upstream.Credentials) table.Store {
		return api.Resource(endpoint, creds)
	})
	pages := service.NewPageService(stores, options, logger)
	auth := service.NewAuthService(api, sessions, cfg.SessionIdle, logger)
	prefs := service.NewPrefService(prefsRepo, logger)

	srv := handler.NewServer(auth, pages, prefs, options, handler.Options{CookieSecure: cfg.CookieSecure}, logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxUploadBytes))
	r.Mount("/", srv.Handler())

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout covers a full save round trip to the remote API.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go purgeSessions(ctx, auth, pages, logger)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "api_url", cfg.APIURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate brings the schema up to date.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "count", n)
	return nil
}

// purgeSessions removes idle sessions and their page workspaces until ctx is
// cancelled.
func purgeSessions(ctx context.Context, auth *service.AuthService, pages *service.PageService, log *slog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := auth.PurgeIdle(ctx, pages)
			if err != nil {
				log.WarnContext(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "idle sessions purged", "count", n)
			}
		}
	}
}
