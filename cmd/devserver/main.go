package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/prism-console/cmd"
	"github.com/nulzo/prism-console/internal/config"
	"github.com/nulzo/prism-console/internal/platform/logger"
	"github.com/nulzo/prism-console/internal/platform/otel"
	"github.com/nulzo/prism-console/internal/server"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/internal/store/memory"
	"github.com/nulzo/prism-console/internal/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Initialize(logger.DefaultConfig().WithOverrides(cfg.Log.Level, cfg.Log.Format))
	defer logger.Sync()
	log := logger.Get()

	tracerCfg := otel.TracerConfig{ServiceName: "prism-devserver", Version: cmd.AppVersion}
	if os.Getenv("OTEL_STDOUT") != "" {
		tracerCfg.Writer = os.Stdout
	}
	shutdownTracer, err := otel.InitTracer(tracerCfg, log)
	if err != nil {
		log.Fatal("Failed to init tracer", zap.Error(err))
	}

	repo, err := openRepository(cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer repo.Close()

	srv := server.New(cfg, repo, log, cmd.AppVersion)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Admin dev server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("env", cfg.Server.Env),
			zap.Bool("auth", len(cfg.Server.APIKeys) > 0),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
}

func openRepository(cfg *config.Config, log *zap.Logger) (store.Repository, error) {
	if cfg.Server.Database == "" {
		log.Info("Using in-memory storage")
		return memory.New(), nil
	}
	log.Info("Using sqlite storage", zap.String("dsn", cfg.Server.Database))
	return sqlite.NewSQLiteStorage(cfg.Server.Database, log)
}
