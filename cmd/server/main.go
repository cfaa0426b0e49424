package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/app"
	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config TOML (default $CONFIG_PATH or config/config.toml)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg, found, err := config.Resolve(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	if !found {
		logger.Warn("no config file found, using built-in defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}
	defer a.Close(context.Background())

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(a.Pipeline, a.Ingestor, logger)

	if sched, err := server.Schedule(cfg.Server.Schedule, a.Pipeline, logger); err == nil {
		defer sched.Stop()
	} else if !eris.Is(err, server.ErrNoSchedule) {
		logger.Fatal("failed to schedule pipeline", zap.Error(err))
	}

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.SetupRouter(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
