package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
)

// RevaluationResult reports one user's revaluation pass. It is always
// returned; failures set OK=false and Error instead of propagating.
type RevaluationResult struct {
	OK                     bool        `json:"ok"`
	UserID                 string      `json:"user_id"`
	AsOfDate               models.Date `json:"as_of_date"`
	UpdatedItems           int         `json:"updated_items"`
	SkippedNoPrice         int         `json:"skipped_no_price"`
	SkippedUnsupportedGame int         `json:"skipped_unsupported_game"`
	Error                  string      `json:"error,omitempty"`
	err                    error
}

// Err returns the underlying failure, if any.
func (r RevaluationResult) Err() error { return r.err }

// RevalueAllSummary aggregates a batch run over every user.
type RevalueAllSummary struct {
	AsOfDate models.Date         `json:"as_of_date"`
	Users    int                 `json:"users"`
	Failed   int                 `json:"failed"`
	Results  []RevaluationResult `json:"results"`
}

// RevaluationService recomputes item valuations and daily portfolio
// snapshots from collection items and vendor price tables.
type RevaluationService struct {
	db       *gorm.DB
	resolver *PriceResolver
	fx       pricing.FXTable
	now      func() time.Time
}

func NewRevaluationService(db *gorm.DB, resolver *PriceResolver, fx pricing.FXTable) *RevaluationService {
	return &RevaluationService{
		db:       db,
		resolver: resolver,
		fx:       fx,
		now:      time.Now,
	}
}

// plannedValuation is one priced item awaiting the write phase.
type plannedValuation struct {
	item      models.CollectionItem
	valuation models.ItemValuation
	unitCents int64
}

// RevalueUser recomputes userID's portfolio for asOf (today when zero).
// Prices are resolved first; all writes then happen in one transaction so
// the portfolio row never reflects a partial set of item valuations.
func (s *RevaluationService) RevalueUser(ctx context.Context, userID string, asOf models.Date) RevaluationResult {
	start := time.Now()
	if asOf.IsZero() {
		asOf = models.DateOf(s.now())
	}
	result := RevaluationResult{UserID: userID, AsOfDate: asOf}
	log := logger.Get()

	fail := func(err error) RevaluationResult {
		result.OK = false
		result.Error = err.Error()
		result.err = err
		metrics.RevaluationRunsTotal.WithLabelValues("failed").Inc()
		log.Errorf("Revaluation: user %s on %s failed: %v", userID, asOf, err)
		return result
	}

	if userID == "" {
		return fail(apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required"))
	}
	s.resolver.Purge()

	var items []models.CollectionItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return fail(apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load collection: %w", err)))
	}

	if len(items) == 0 {
		result.OK = true
		metrics.RevaluationRunsTotal.WithLabelValues("noop").Inc()
		log.Debugf("Revaluation: user %s has no collection items", userID)
		return result
	}

	for _, item := range items {
		if item.Quantity < 0 {
			return fail(apperrors.Wrap(apperrors.ErrNegativeQuantity,
				fmt.Errorf("collection item %d has quantity %d", item.ID, item.Quantity)))
		}
	}

	now := s.now()
	var planned []plannedValuation
	for _, item := range items {
		game, ok := item.CanonicalGame()
		if !ok || !s.resolver.SupportsGame(game) {
			result.SkippedUnsupportedGame++
			continue
		}
		if item.ExternalID == "" {
			result.SkippedNoPrice++
			continue
		}

		p, ok := s.price(ctx, game, item)
		if !ok {
			result.SkippedNoPrice++
			continue
		}
		planned = append(planned, p.withDate(userID, asOf, now))
	}

	portfolio := buildPortfolio(userID, asOf, planned)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range planned {
			if err := upsertItemValuation(tx, p.valuation, now); err != nil {
				return err
			}
			unit := p.unitCents
			if err := tx.Model(&models.CollectionItem{}).Where("id = ?", p.item.ID).
				Updates(map[string]any{"last_value_cents": unit, "last_valued_at": now}).Error; err != nil {
				return fmt.Errorf("update last value of item %d: %w", p.item.ID, err)
			}
		}
		return upsertPortfolioValuation(tx, portfolio, now)
	})
	if err != nil {
		return fail(apperrors.Wrap(apperrors.ErrInternalServer, err))
	}

	result.OK = true
	result.UpdatedItems = len(planned)

	metrics.RevaluationRunsTotal.WithLabelValues("ok").Inc()
	metrics.RevaluationItemsTotal.WithLabelValues("valued").Add(float64(result.UpdatedItems))
	metrics.RevaluationItemsTotal.WithLabelValues("no_price").Add(float64(result.SkippedNoPrice))
	metrics.RevaluationItemsTotal.WithLabelValues("unsupported").Add(float64(result.SkippedUnsupportedGame))
	metrics.RevaluationDuration.Observe(time.Since(start).Seconds())

	log.Infof("Revaluation: user %s on %s: %d valued, %d no price, %d unsupported (total %d cents)",
		userID, asOf, result.UpdatedItems, result.SkippedNoPrice, result.SkippedUnsupportedGame, portfolio.TotalValueCents)
	return result
}

// price resolves and converts an item's unit price to USD.
func (s *RevaluationService) price(ctx context.Context, game models.Game, item models.CollectionItem) (plannedValuation, bool) {
	quote := s.resolver.Resolve(ctx, game, item.ExternalID, item.Variant)
	if quote == nil {
		return plannedValuation{}, false
	}

	native := pricing.Price{AmountCents: quote.AmountCents, Currency: quote.Currency}
	usd, ok := s.fx.Convert(native, models.CurrencyUSD)
	if !ok {
		logger.Get().Warnf("Revaluation: no FX rate for %s, treating item %d as unpriced", quote.Currency, item.ID)
		return plannedValuation{}, false
	}

	meta := models.ItemValuationMeta{
		UnitPriceCents: usd.AmountCents,
		Quantity:       item.Quantity,
		Variant:        item.Variant,
		ExternalID:     item.ExternalID,
	}
	if quote.Currency != models.CurrencyUSD {
		meta.OriginalCents = quote.AmountCents
		meta.OriginalCurrency = quote.Currency
	}
	if !quote.UpdatedAt.IsZero() {
		meta.PriceUpdatedAt = quote.UpdatedAt.UTC().Format(time.RFC3339)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return plannedValuation{
		item:      item,
		unitCents: usd.AmountCents,
		valuation: models.ItemValuation{
			CollectionItemID: item.ID,
			Source:           quote.Source,
			Game:             game,
			ValueCents:       usd.AmountCents * int64(item.Quantity),
			Currency:         models.CurrencyUSD,
			Confidence:       quote.Confidence,
			Meta:             datatypes.JSON(metaJSON),
		},
	}, true
}

func (p plannedValuation) withDate(userID string, asOf models.Date, now time.Time) plannedValuation {
	p.valuation.UserID = userID
	p.valuation.AsOfDate = asOf
	p.valuation.CreatedAt = now
	p.valuation.UpdatedAt = now
	return p
}

// buildPortfolio totals the priced items. Unrealized P&L stays nil when
// nothing was priced; realized P&L is never computed here.
func buildPortfolio(userID string, asOf models.Date, planned []plannedValuation) models.DailyPortfolioValuation {
	breakdown := models.Breakdown{}
	distinct := map[uint]struct{}{}
	distinctByGame := map[models.Game]map[uint]struct{}{}

	pv := models.DailyPortfolioValuation{UserID: userID, AsOfDate: asOf}
	for _, p := range planned {
		game := p.valuation.Game
		qty := int64(p.item.Quantity)
		cost := p.item.CostBasisTotalCents()

		pv.TotalQuantity += qty
		pv.TotalCostBasisCents += cost
		pv.TotalValueCents += p.valuation.ValueCents
		distinct[p.item.ID] = struct{}{}

		if distinctByGame[game] == nil {
			distinctByGame[game] = map[uint]struct{}{}
		}
		distinctByGame[game][p.item.ID] = struct{}{}

		totals := breakdown[game]
		totals.Quantity += qty
		totals.CostBasisCents += cost
		totals.ValueCents += p.valuation.ValueCents
		totals.DistinctItems = len(distinctByGame[game])
		breakdown[game] = totals
	}

	pv.DistinctItems = len(distinct)
	if len(planned) > 0 {
		pnl := pv.TotalValueCents - pv.TotalCostBasisCents
		pv.UnrealizedPnlCents = &pnl
	}
	pv.Breakdown = datatypes.NewJSONType(breakdown)
	return pv
}

func upsertItemValuation(tx *gorm.DB, incoming models.ItemValuation, now time.Time) error {
	var existing models.ItemValuation
	err := tx.Where("user_id = ? AND collection_item_id = ? AND as_of_date = ? AND source = ?",
		incoming.UserID, incoming.CollectionItemID, incoming.AsOfDate, incoming.Source).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&incoming).Error; err != nil {
			return fmt.Errorf("insert item valuation for item %d: %w", incoming.CollectionItemID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load item valuation for item %d: %w", incoming.CollectionItemID, err)
	}

	merged := models.MergeItemValuation(existing, incoming, now)
	if err := tx.Save(&merged).Error; err != nil {
		return fmt.Errorf("update item valuation %d: %w", existing.ID, err)
	}
	return nil
}

func upsertPortfolioValuation(tx *gorm.DB, incoming models.DailyPortfolioValuation, now time.Time) error {
	var existing models.DailyPortfolioValuation
	err := tx.Where("user_id = ? AND as_of_date = ?", incoming.UserID, incoming.AsOfDate).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		if err := tx.Create(&incoming).Error; err != nil {
			return fmt.Errorf("insert portfolio valuation: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load portfolio valuation: %w", err)
	}

	merged := models.MergePortfolioValuation(existing, incoming, now)
	if err := tx.Save(&merged).Error; err != nil {
		return fmt.Errorf("update portfolio valuation %d: %w", existing.ID, err)
	}
	return nil
}

// RevalueAll runs RevalueUser for every user holding collection items.
// One user's failure is logged and does not stop the batch.
func (s *RevaluationService) RevalueAll(ctx context.Context, asOf models.Date) (RevalueAllSummary, error) {
	if asOf.IsZero() {
		asOf = models.DateOf(s.now())
	}
	summary := RevalueAllSummary{AsOfDate: asOf}

	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.CollectionItem{}).
		Distinct("user_id").Order("user_id ASC").Pluck("user_id", &userIDs).Error; err != nil {
		return summary, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("list users: %w", err))
	}

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res := s.RevalueUser(ctx, userID, asOf)
		summary.Users++
		if !res.OK {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	s.publishTotals(ctx, asOf)
	logger.Get().Infof("Revaluation: %s complete: %d users, %d failed", asOf, summary.Users, summary.Failed)
	return summary, nil
}

// publishTotals sets the per-game portfolio value gauge from the stored snapshots.
func (s *RevaluationService) publishTotals(ctx context.Context, asOf models.Date) {
	var rows []models.DailyPortfolioValuation
	if err := s.db.WithContext(ctx).Where("as_of_date = ?", asOf).Find(&rows).Error; err != nil {
		logger.Get().Warnf("Revaluation: failed to load totals for metrics: %v", err)
		return
	}
	byGame := map[models.Game]int64{}
	for _, row := range rows {
		for game, totals := range row.Breakdown.Data() {
			byGame[game] += totals.ValueCents
		}
	}
	for game, cents := range byGame {
		metrics.PortfolioValueCents.WithLabelValues(string(game)).Set(float64(cents))
	}
}
