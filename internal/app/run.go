package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transfer-router/internal/common/logging"
	"transfer-router/internal/config"
)

// Run is the application entry point: environment, logging, wiring, serve,
// graceful shutdown on SIGINT/SIGTERM.
func Run() error {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("configuration validation failed", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := New(ctx, cfg)
	cancel()
	if err != nil {
		logging.Error("failed to initialize application", err)
		return err
	}

	application.Start()
	logging.Info("transfer router started",
		logging.String("port", cfg.Port),
		logging.Int("gateways", len(cfg.Gateways)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown failed", err)
		return err
	}
	logging.Info("shutdown complete")
	return nil
}
