// Command server runs the call router HTTP API.
//
// @title                      Call Router API
// @version                    1.0
// @description                Voice call routing: provider webhooks, call logs, recordings and the extension directory.
// @BasePath                   /api
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-call-router/internal/auth"
	"github.com/tbourn/go-call-router/internal/cache"
	"github.com/tbourn/go-call-router/internal/config"
	httpapi "github.com/tbourn/go-call-router/internal/http"
	"github.com/tbourn/go-call-router/internal/observability"
	"github.com/tbourn/go-call-router/internal/repo"
	"github.com/tbourn/go-call-router/internal/sysutil"
	"github.com/tbourn/go-call-router/internal/twilio"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const purgeInterval = time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	gin.SetMode(cfg.GinMode)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, appVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel init failed")
	}

	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentDB(db); err != nil {
			logger.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("auth init failed")
	}

	gateway := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
		twilio.WithBaseURL(cfg.Twilio.APIBaseURL),
		twilio.WithTimeout(cfg.Twilio.Timeout),
		twilio.WithRetry(cfg.Twilio.RetryAttempts, 0, 0),
		twilio.WithBreaker(cfg.Twilio.BreakerFailures, 30*time.Second),
	)

	deps := httpapi.Deps{DB: db, Gateway: gateway, Tokens: tokens}
	var rdb *cache.Redis
	if cfg.RedisURL != "" {
		rdb, err = cache.Open(rootCtx, cfg.RedisURL, cache.Options{})
		if err != nil {
			// Stats still work without the cache.
			logger.Warn().Err(err).Msg("redis unavailable, stats cache disabled")
		} else {
			deps.Cache = rdb
		}
	}

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	httpapi.RegisterRoutes(r, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeDeliveries(rootCtx, db, logger)

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("driver", cfg.DBDriver).
			Str("version", appVersion).
			Bool("signature_validation", cfg.Twilio.ValidateSignature).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("bye")
}
