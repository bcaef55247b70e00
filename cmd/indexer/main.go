package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"predictions/internal/client/chainfeed"
	"predictions/internal/config"
	cronrunner "predictions/internal/cron"
	"predictions/internal/db"
	"predictions/internal/handler"
	"predictions/internal/logger"
	gormrepository "predictions/internal/repository/gorm"
	"predictions/internal/service"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("PI_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("PI_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}

	// Schema is a hard prerequisite for everything else: a migration failure
	// halts startup.
	if err := db.Migrate(dbConn); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	snapshotLoc := time.UTC
	if cfg.Snapshot.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Snapshot.Timezone)
		if err != nil {
			logger.Fatal("invalid snapshot timezone", zap.String("tz", cfg.Snapshot.Timezone), zap.Error(err))
		}
		snapshotLoc = loc
	}

	feedHTTP := &http.Client{Timeout: cfg.Feed.Timeout}
	feedClient := chainfeed.NewClient(feedHTTP, cfg.Feed.URL, cfg.Feed.APIKey)
	store := gormrepository.New(dbConn.Gorm)

	ingest := &service.IngestService{
		Repo:       store,
		Feed:       feedClient,
		Aggregator: &service.ProfileAggregator{Repo: store},
		Logger:     logger,
		Config:     cfg.Indexer,
		Contract:   cfg.Contract,
	}
	snapshot := &service.LeaderboardSnapshotService{
		Repo:     store,
		Logger:   logger,
		Location: snapshotLoc,
	}
	querySvc := &service.MarketQueryService{Repo: store}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{
		DB:     dbConn,
		Repo:   store,
		Stream: cfg.Indexer.Stream,
		MaxLag: 10 * cfg.Indexer.PollInterval,
	}
	healthHandler.Register(engine)
	queryHandler := &handler.QueryHandler{Query: querySvc, Location: snapshotLoc}
	queryHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Snapshot.Enabled {
		if _, err := cronRunner.Add(cfg.Snapshot.Cron, func(ctx context.Context) {
			if err := snapshot.RunCurrent(ctx); err != nil {
				logger.Warn("leaderboard snapshot failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register snapshot failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	// The polling loop owns the foreground; it exits when ctx is cancelled.
	if err := ingest.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest loop exited", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
