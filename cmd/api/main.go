// Package main is the entry point for the Trip Timeline API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/trip-timeline/backend/internal/auth"
	"github.com/pkordes/trip-timeline/backend/internal/authz"
	"github.com/pkordes/trip-timeline/backend/internal/config"
	"github.com/pkordes/trip-timeline/backend/internal/feed"
	"github.com/pkordes/trip-timeline/backend/internal/handler"
	"github.com/pkordes/trip-timeline/backend/internal/middleware"
	"github.com/pkordes/trip-timeline/backend/internal/pagecache"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/internal/service"
	"github.com/pkordes/trip-timeline/backend/internal/storage"
	"github.com/pkordes/trip-timeline/backend/migrations"
	"github.com/pkordes/trip-timeline/backend/openapi"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connection established")

	if err := migrate(ctx, pool, logger); err != nil {
		return err
	}

	// --- Services ---------------------------------------------------------
	store, err := storage.NewFSStore(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}
	pages, err := pagecache.New(cfg.PageCacheSize)
	if err != nil {
		return err
	}

	trips := repo.NewTripRepo(pool)
	entries := repo.NewEntryRepo(pool)
	oracle := authz.NewOracle(entries, trips, logger)

	tripSvc := service.NewTripService(trips, entries, store, pages, logger)
	entrySvc := service.NewEntryService(trips, entries, oracle, store, pages, logger)
	exportSvc := service.NewExportService(trips, entries, store)

	// --- Change feed ------------------------------------------------------
	hub := feed.NewHub(cfg.FeedBuffer, logger)
	defer hub.Close()
	notifier := feed.NewPGNotifier(pool, entries, hub, logger)

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID → RealIP → CORS → Auth → Logger → Recoverer → MaxBody.
	// Auth runs before the logger so request lines carry the actor.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewAuthHandler(jwtManager))
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(tripSvc, entrySvc, exportSvc, hub, logger)
	r.Mount("/api/v1", srv.Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		//nolint:errcheck
		w.Write(openapi.Document)
	})
	r.Handle(storage.PublicPrefix+"*",
		http.StripPrefix(storage.PublicPrefix, http.FileServer(http.Dir(store.Root()))))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout is left unset: feed connections are long-lived and set
	// their own per-frame deadlines.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Close feed subscribers first so Shutdown does not wait on them.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// migrate applies pending migrations through a database/sql handle borrowed
// from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("migrations up to date", "applied", applied)
	return nil
}
