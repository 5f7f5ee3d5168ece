package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

// Pipeline step names, in dependency order.
const (
	StepSync    = "sync"
	StepRollup  = "rollup"
	StepRevalue = "revalue"
)

// DefaultSteps is the full nightly sequence.
var DefaultSteps = []string{StepSync, StepRollup, StepRevalue}

// stepOutcome is what a step reports back to the pipeline.
type stepOutcome struct {
	processed int
	failed    int
}

// Pipeline runs the nightly steps for one as-of date and records each as a JobRun.
type Pipeline struct {
	db          *gorm.DB
	sync        *SyncService
	market      *MarketService
	revaluation *RevaluationService
	steps       []string
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

func NewPipeline(db *gorm.DB, syncSvc *SyncService, market *MarketService, revaluation *RevaluationService, steps []string) *Pipeline {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	return &Pipeline{
		db:          db,
		sync:        syncSvc,
		market:      market,
		revaluation: revaluation,
		steps:       orderSteps(steps),
		now:         time.Now,
	}
}

// orderSteps keeps known steps in dependency order and drops unknown names.
func orderSteps(steps []string) []string {
	want := map[string]bool{}
	for _, s := range steps {
		want[s] = true
	}
	var ordered []string
	for _, s := range DefaultSteps {
		if want[s] {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// Steps returns the configured steps in run order.
func (p *Pipeline) Steps() []string {
	return append([]string(nil), p.steps...)
}

// IsRunning reports whether a pipeline run is in progress.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Run executes every configured step for asOf (today when zero). A failing
// step is recorded and later steps still run; the returned error reports
// the first failure.
func (p *Pipeline) Run(ctx context.Context, asOf models.Date) ([]models.JobRun, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, apperrors.ErrJobRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if asOf.IsZero() {
		asOf = models.DateOf(p.now())
	}
	pipelineID := uuid.NewString()
	log := logger.Get()
	log.Infof("Pipeline: run %s for %s starting (%v)", pipelineID, asOf, p.steps)

	var runs []models.JobRun
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		run, err := p.runStep(ctx, pipelineID, step, asOf)
		runs = append(runs, run)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("step %s: %w", step, err)
		}
	}

	if firstErr != nil {
		log.Warnf("Pipeline: run %s for %s finished with failures: %v", pipelineID, asOf, firstErr)
	} else {
		log.Infof("Pipeline: run %s for %s finished", pipelineID, asOf)
	}
	return runs, firstErr
}

func (p *Pipeline) runStep(ctx context.Context, pipelineID, step string, asOf models.Date) (models.JobRun, error) {
	start := p.now()
	run := models.JobRun{
		PipelineID: pipelineID,
		Job:        step,
		AsOfDate:   asOf,
		Status:     models.JobStatusRunning,
		StartedAt:  start,
	}
	if err := p.db.WithContext(ctx).Create(&run).Error; err != nil {
		logger.Get().Errorf("Pipeline: failed to record %s start: %v", step, err)
	}

	outcome, stepErr := p.execute(ctx, step, asOf)

	finished := p.now()
	run.FinishedAt = &finished
	run.Processed = outcome.processed
	run.Failed = outcome.failed
	run.Status = models.JobStatusSucceeded
	status := "ok"
	if stepErr != nil {
		run.Status = models.JobStatusFailed
		run.Error = stepErr.Error()
		status = "failed"
	}

	if err := p.db.WithContext(ctx).Save(&run).Error; err != nil {
		logger.Get().Errorf("Pipeline: failed to record %s result: %v", step, err)
	}

	elapsed := finished.Sub(start)
	metrics.PipelineStepDuration.WithLabelValues(step, status).Observe(elapsed.Seconds())
	if stepErr == nil {
		metrics.PipelineLastSuccess.WithLabelValues(step).Set(float64(finished.Unix()))
		logger.Get().Infof("Pipeline: %s for %s done in %v (%d processed, %d failed)",
			step, asOf, elapsed, outcome.processed, outcome.failed)
	} else {
		logger.Get().Errorf("Pipeline: %s for %s failed after %v: %v", step, asOf, elapsed, stepErr)
	}
	return run, stepErr
}

func (p *Pipeline) execute(ctx context.Context, step string, asOf models.Date) (stepOutcome, error) {
	switch step {
	case StepSync:
		if p.sync == nil {
			return stepOutcome{}, nil
		}
		results, err := p.sync.SyncAll(ctx)
		var out stepOutcome
		for _, r := range results {
			out.processed += r.RowsUpserted
			out.failed += len(r.Errors)
		}
		return out, err

	case StepRollup:
		summary, err := p.market.SnapshotAll(ctx, asOf)
		return stepOutcome{processed: summary.Written, failed: summary.Unpriced}, err

	case StepRevalue:
		summary, err := p.revaluation.RevalueAll(ctx, asOf)
		if err != nil {
			return stepOutcome{}, err
		}
		out := stepOutcome{processed: summary.Users - summary.Failed, failed: summary.Failed}
		if summary.Failed > 0 {
			return out, fmt.Errorf("%d of %d users failed revaluation", summary.Failed, summary.Users)
		}
		return out, nil
	}
	return stepOutcome{}, fmt.Errorf("unknown pipeline step %q", step)
}

// RecentRuns lists the most recent job runs, newest first.
func (p *Pipeline) RecentRuns(ctx context.Context, limit int) ([]models.JobRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	runs := []models.JobRun{}
	if err := p.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("list job runs: %w", err))
	}
	return runs, nil
}
