package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

// Scheduler triggers the nightly pipeline on a cron schedule evaluated in UTC.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	schedule string
	entry    cron.EntryID
}

// NewScheduler validates schedule and registers the pipeline run.
func NewScheduler(pipeline *Pipeline, schedule string) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, pipeline: pipeline, schedule: schedule}

	id, err := c.AddFunc(schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) tick() {
	asOf := models.Today()
	logger.Get().Infof("Scheduler: starting nightly pipeline for %s", asOf)
	if _, err := s.pipeline.Run(context.Background(), asOf); err != nil {
		if errors.Is(err, apperrors.ErrJobRunning) {
			logger.Get().Warnf("Scheduler: pipeline already running, skipping %s", asOf)
			return
		}
		logger.Get().Errorf("Scheduler: pipeline for %s failed: %v", asOf, err)
	}
}

// Start runs the scheduler until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	logger.Get().Infof("Scheduler: nightly pipeline scheduled at %q (UTC)", s.schedule)

	<-ctx.Done()
	logger.Get().Info("Scheduler: stopping...")
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
