package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/tcg-valuation/internal/api"
	"github.com/codyseavey/tcg-valuation/internal/app"
	"github.com/codyseavey/tcg-valuation/internal/config"
	"github.com/codyseavey/tcg-valuation/internal/database"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()
	log := logger.Get()

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warnf("Failed to close database: %v", err)
		}
	}()

	a := app.New(cfg, db)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Pipeline.SchedulerEnabled {
		scheduler, err := services.NewScheduler(a.Pipeline, cfg.Pipeline.Schedule)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		go scheduler.Start(ctx)
		log.Infof("Nightly pipeline scheduled (%s), steps: %v", cfg.Pipeline.Schedule, a.Pipeline.Steps())
	} else {
		log.Info("Nightly scheduler disabled")
	}

	router := api.SetupRouter(cfg.CORSAllowedOrigins, a.APIServices())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop the scheduler before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
