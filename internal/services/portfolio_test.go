package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/testutil"
)

func createPortfolio(t *testing.T, db *gorm.DB, userID string, date models.Date, value int64) {
	t.Helper()
	pv := models.DailyPortfolioValuation{
		UserID:          userID,
		AsOfDate:        date,
		TotalValueCents: value,
		Breakdown:       datatypes.NewJSONType(models.Breakdown{}),
	}
	if err := db.Create(&pv).Error; err != nil {
		t.Fatalf("create portfolio valuation: %v", err)
	}
}

func TestPortfolioHistoryPeriods(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	today := models.NewDate(2024, time.June, 30)

	createPortfolio(t, db, user, today.AddDays(-400), 100)
	createPortfolio(t, db, user, today.AddDays(-60), 200)
	createPortfolio(t, db, user, today.AddDays(-20), 300)
	createPortfolio(t, db, user, today.AddDays(-3), 400)
	createPortfolio(t, db, testutil.NewUserID(), today, 999)

	svc := NewPortfolioService(db)
	svc.now = func() time.Time { return today.Time().Add(12 * time.Hour) }

	tests := []struct {
		period     string
		wantPeriod string
		wantCount  int
	}{
		{"week", "week", 1},
		{"month", "month", 2},
		{"3month", "3month", 3},
		{"year", "year", 3},
		{"all", "all", 4},
		{"bogus", "month", 2},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			resp, err := svc.History(context.Background(), user, tt.period)
			testutil.AssertNoError(t, err)
			if resp.Period != tt.wantPeriod {
				t.Errorf("expected period %q, got %q", tt.wantPeriod, resp.Period)
			}
			if len(resp.Snapshots) != tt.wantCount {
				t.Errorf("expected %d snapshots, got %d", tt.wantCount, len(resp.Snapshots))
			}
			for i := 1; i < len(resp.Snapshots); i++ {
				if !resp.Snapshots[i-1].AsOfDate.Before(resp.Snapshots[i].AsOfDate) {
					t.Errorf("snapshots not in ascending date order")
				}
			}
		})
	}
}

func TestPortfolioLatest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	svc := NewPortfolioService(db)
	ctx := context.Background()

	_, err := svc.Latest(ctx, user)
	testutil.AssertAppError(t, err, "NOT_FOUND")

	createPortfolio(t, db, user, jan1, 100)
	createPortfolio(t, db, user, jan1.AddDays(1), 250)

	pv, err := svc.Latest(ctx, user)
	testutil.AssertNoError(t, err)
	if pv.TotalValueCents != 250 {
		t.Errorf("expected latest value 250, got %d", pv.TotalValueCents)
	}
}

func TestPortfolioValuationsByDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	ctx := context.Background()

	testutil.CreateCollectionItem(t, db, user, "pokemon", "pv-1", 1)
	testutil.CreateCollectionItem(t, db, user, "pokemon", "pv-2", 2)
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "pv-1", 100, nil, time.Now())
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "pv-2", 300, nil, time.Now())

	reval := newTestRevaluation(db, nil)
	reval.RevalueUser(ctx, user, jan1)
	reval.RevalueUser(ctx, user, jan1.AddDays(1))

	svc := NewPortfolioService(db)

	vals, date, err := svc.Valuations(ctx, user, models.Date{})
	testutil.AssertNoError(t, err)
	if !date.Equal(jan1.AddDays(1)) {
		t.Errorf("expected latest date %s, got %s", jan1.AddDays(1), date)
	}
	if len(vals) != 2 || vals[0].ValueCents != 600 {
		t.Errorf("expected 2 valuations led by 600, got %+v", vals)
	}

	vals, _, err = svc.Valuations(ctx, user, jan1)
	testutil.AssertNoError(t, err)
	if len(vals) != 2 {
		t.Errorf("expected 2 valuations on %s, got %d", jan1, len(vals))
	}

	vals, _, err = svc.Valuations(ctx, testutil.NewUserID(), models.Date{})
	testutil.AssertNoError(t, err)
	if len(vals) != 0 {
		t.Errorf("expected no valuations for a new user, got %d", len(vals))
	}
}
