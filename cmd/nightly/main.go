// nightly runs the valuation pipeline once and exits.
//
// Usage: nightly [-date=YYYY-MM-DD] [-steps=sync,rollup,revalue]
//
// Exit status is non-zero when any step fails; later steps still run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codyseavey/tcg-valuation/internal/app"
	"github.com/codyseavey/tcg-valuation/internal/config"
	"github.com/codyseavey/tcg-valuation/internal/database"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

func main() {
	dateFlag := flag.String("date", "", "valuation date (YYYY-MM-DD, default today UTC)")
	stepsFlag := flag.String("steps", "", "comma-separated steps (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()

	if err := run(cfg, *dateFlag, *stepsFlag); err != nil {
		logger.Get().Errorf("Nightly: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, date, steps string) error {
	var asOf models.Date
	if date != "" {
		d, err := models.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", date, err)
		}
		asOf = d
	}
	if steps != "" {
		cfg.Pipeline.Steps = strings.Split(steps, ",")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Get().Warnf("Failed to close database: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, db)
	runs, err := a.Pipeline.Run(ctx, asOf)
	for _, r := range runs {
		logger.Get().Infow("Nightly: step finished",
			"job", r.Job,
			"status", r.Status,
			"processed", r.Processed,
			"failed", r.Failed,
		)
	}
	if len(runs) == 0 && err == nil {
		return fmt.Errorf("no runnable steps in %v (known: %s, %s, %s)",
			cfg.Pipeline.Steps, services.StepSync, services.StepRollup, services.StepRevalue)
	}
	return err
}
