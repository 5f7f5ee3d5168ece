package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the outcome of one pipeline step.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JobRun records one execution of a nightly pipeline step.
type JobRun struct {
	ID         string     `json:"id" gorm:"type:uuid;primaryKey"`
	PipelineID string     `json:"pipeline_id" gorm:"index"`
	Job        string     `json:"job" gorm:"not null;index"`
	AsOfDate   Date       `json:"as_of_date" gorm:"not null"`
	Status     JobStatus  `json:"status" gorm:"not null"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// BeforeCreate hook generates an id for new records
func (j *JobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// AllModels lists every persisted model, in dependency order.
func AllModels() []any {
	return []any{
		&CollectionItem{},
		&ItemValuation{},
		&DailyPortfolioValuation{},
		&MarketItem{},
		&MarketItemSource{},
		&MarketPriceSnapshot{},
		&TCGPlayerPriceRow{},
		&CardmarketPriceRow{},
		&YGOPRODeckPriceRow{},
		&ScryfallPriceRow{},
		&EbayPriceRow{},
		&PSAPriceRow{},
		&EffectivePriceRow{},
		&JobRun{},
	}
}
