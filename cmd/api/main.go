package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"car_feedback/internal/adapters/charts"
	server "car_feedback/internal/adapters/http_server"
	"car_feedback/internal/adapters/observability"
	redisad "car_feedback/internal/adapters/redis"
	"car_feedback/internal/adapters/report"
	"car_feedback/internal/adapters/sentiment"
	slacknotify "car_feedback/internal/adapters/slack"
	"car_feedback/internal/app"
	"car_feedback/internal/domain"
	"car_feedback/internal/shared"
	mysqlrepo "car_feedback/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "api")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	var batchCache domain.Cache = cache
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		// reads fall through to MySQL
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, batch cache disabled")
		batchCache = nil
	}
	cancel()

	classifier, err := sentiment.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sentiment classifier")
	}

	var notifier domain.Notifier
	if cfg.SlackEnabled() {
		notifier = slacknotify.New(cfg.SlackBotToken, cfg.SlackChannelID)
	}

	q := app.NewQueryService(repo, batchCache, cfg.CacheTTL(), report.NewExporter(cfg.ReportAuthor), charts.NewRenderer())
	a := app.NewAnalysisService(classifier, repo, notifier, cfg.ClassifyTimeoutDuration(), cfg.Workers)

	// http
	srv := server.New(30 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, A: a, MaxUpload: cfg.MaxUploadBytes, BatchTimeout: cfg.BatchTimeoutDuration()})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("provider", classifier.Name()).
		Int("workers", cfg.Workers).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
