package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

// HistoryPeriods are the accepted values of a portfolio history period.
var HistoryPeriods = []string{"week", "month", "3month", "year", "all"}

// PortfolioService reads stored portfolio and item valuations.
type PortfolioService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{db: db, now: time.Now}
}

// periodStart returns the first date included in period; ok is false for
// "all". Unknown periods fall back to one month.
func periodStart(period string, today models.Date) (start models.Date, normalized string, ok bool) {
	t := today.Time()
	switch period {
	case "week":
		return models.DateOf(t.AddDate(0, 0, -7)), period, true
	case "month":
		return models.DateOf(t.AddDate(0, -1, 0)), period, true
	case "3month":
		return models.DateOf(t.AddDate(0, -3, 0)), period, true
	case "year":
		return models.DateOf(t.AddDate(-1, 0, 0)), period, true
	case "all":
		return models.Date{}, period, false
	default:
		return models.DateOf(t.AddDate(0, -1, 0)), "month", true
	}
}

// History returns the user's daily snapshots for period, oldest first.
func (s *PortfolioService) History(ctx context.Context, userID, period string) (*models.PortfolioHistoryResponse, error) {
	if userID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}

	start, normalized, bounded := periodStart(period, models.DateOf(s.now()))

	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("as_of_date ASC")
	if bounded {
		query = query.Where("as_of_date >= ?", start)
	}

	snapshots := []models.DailyPortfolioValuation{}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load portfolio history: %w", err))
	}
	return &models.PortfolioHistoryResponse{Snapshots: snapshots, Period: normalized}, nil
}

// Latest returns the user's most recent snapshot, or ErrNotFound when the
// user has never been valued.
func (s *PortfolioService) Latest(ctx context.Context, userID string) (*models.DailyPortfolioValuation, error) {
	if userID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}

	var pv models.DailyPortfolioValuation
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("as_of_date DESC").First(&pv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WithMessage(apperrors.ErrNotFound, "no valuation yet")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load latest portfolio: %w", err))
	}
	return &pv, nil
}

// Valuations returns the user's item valuations for one date (the latest
// valued date when date is zero).
func (s *PortfolioService) Valuations(ctx context.Context, userID string, date models.Date) ([]models.ItemValuation, models.Date, error) {
	if userID == "" {
		return nil, date, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}

	db := s.db.WithContext(ctx)
	if date.IsZero() {
		var latest models.ItemValuation
		err := db.Where("user_id = ?", userID).Order("as_of_date DESC").First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.ItemValuation{}, date, nil
		}
		if err != nil {
			return nil, date, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("find latest valuation date: %w", err))
		}
		date = latest.AsOfDate
	}

	vals := []models.ItemValuation{}
	if err := db.Where("user_id = ? AND as_of_date = ?", userID, date).
		Order("value_cents DESC").Order("id ASC").
		Find(&vals).Error; err != nil {
		return nil, date, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load item valuations: %w", err))
	}
	return vals, date, nil
}
