// Command server runs the commerce-event ingestion API: the signed event
// endpoints, the reporting reads, and the background funnel maintainer.
//
// Configuration is environment-driven (see internal/config). A local .env
// file is honored in development.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/glowcart/commerce-backend/internal/config"
	httpapi "github.com/glowcart/commerce-backend/internal/http"
	"github.com/glowcart/commerce-backend/internal/maintainer"
	"github.com/glowcart/commerce-backend/internal/observability"
	"github.com/glowcart/commerce-backend/internal/repo"
	"github.com/glowcart/commerce-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Deploy tooling may override the compiled-in version stamp.
	ver := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), version)

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", ver).Str("port", cfg.Port).Msg("starting server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	if cfg.Maintainer.Enabled {
		mt := &maintainer.Maintainer{
			DB:        db,
			Lookback:  cfg.Maintainer.Lookback,
			BatchSize: cfg.Maintainer.BatchSize,
		}
		if sysutil.IsTruthy(os.Getenv("MAINTAINER_RUN_ON_START")) {
			if err := mt.RunOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("initial funnel refresh failed")
			}
		}
		go mt.Run(ctx, cfg.Maintainer.Interval)
		log.Info().
			Dur("interval", cfg.Maintainer.Interval).
			Dur("lookback", cfg.Maintainer.Lookback).
			Msg("funnel maintainer scheduled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
