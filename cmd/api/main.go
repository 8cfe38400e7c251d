package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/contexta-graph/internal/app"
	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/logger"
)

func main() {
	cfg := config.LoadConfig()
	log, err := logger.New(cfg.AppMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}

	server := app.NewServer(cfg.Port, app.NewRouter(application.Handlers(), cfg.CORSOrigins, cfg.RequestTimeout), log)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	application.Close(shutdownCtx)
}
