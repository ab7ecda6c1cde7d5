package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avasseur/ipd-api/config"
	"github.com/avasseur/ipd-api/data"
	"github.com/avasseur/ipd-api/export"
	"github.com/avasseur/ipd-api/guyot"
	"github.com/avasseur/ipd-api/handlers"
	"github.com/avasseur/ipd-api/health"
	"github.com/avasseur/ipd-api/logging"
	"github.com/avasseur/ipd-api/scheduler"
	"github.com/avasseur/ipd-api/server"
	"github.com/avasseur/ipd-api/validation"
)

// resultStaleThreshold is how old stored results may get before /health
// reports them stale.
const resultStaleThreshold = 7 * 24 * time.Hour

func main() {
	// .env is optional, real deployments configure through the environment
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Init("logs", cfg.SlogLevel(), cfg.LogRetentionWeeks, cfg.MaxLogFileSize)

	store := data.NewStudyContainer()
	store.SetServerStartTime(time.Now())

	reconstructor := guyot.NewReconstructor(cfg.EngineConfig())

	exporter, err := export.NewFileExporter(cfg.ExportDir)
	if err != nil {
		logging.Error("Failed to initialize exporter", "error", err)
		os.Exit(1)
	}

	validator := validation.NewStudyValidator()
	checker := health.NewChecker(store, resultStaleThreshold)

	handler := handlers.NewHTTPHandler(store, reconstructor, exporter, validator, checker)

	jobs := scheduler.NewScheduler(store, exporter, cfg.ExportRetentionDays)
	if err := jobs.Start(); err != nil {
		logging.Error("Failed to start background jobs", "error", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
