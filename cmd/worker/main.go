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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}

	application.Ingestor.Start(ctx, cfg.WorkerConcurrency)
	log.Info("Worker running",
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"max_concurrent_tasks", cfg.MaxConcurrentTasks,
		"admission_scope", cfg.AdmissionScope,
	)

	<-ctx.Done()
	log.Info("shutting down; waiting for in-flight jobs...")
	application.Ingestor.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Close(closeCtx)
}
