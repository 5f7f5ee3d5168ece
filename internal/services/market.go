package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
)

// MoversSort selects how movers are ranked.
type MoversSort string

const (
	// MoversSortImpact ranks by absolute cent change (times held quantity for a user).
	MoversSortImpact MoversSort = "impact"
	// MoversSortPercent ranks by absolute percentage change.
	MoversSortPercent MoversSort = "percent"
)

const (
	defaultMoversWindow = 7
	defaultMoversLimit  = 20
	maxMoversLimit      = 100
)

// ParseMoversSort validates a sort name; empty means impact.
func ParseMoversSort(s string) (MoversSort, bool) {
	switch MoversSort(s) {
	case "", MoversSortImpact:
		return MoversSortImpact, true
	case MoversSortPercent:
		return MoversSortPercent, true
	}
	return "", false
}

// MoversQuery selects the window and ranking of a movers request.
type MoversQuery struct {
	WindowDays int
	Limit      int
	Sort       MoversSort
	Game       models.Game // optional filter
	AsOf       models.Date // zero means today
}

// Mover is one ranked price change.
type Mover struct {
	MarketItemID    uint        `json:"market_item_id"`
	Game            models.Game `json:"game"`
	Name            string      `json:"name"`
	FromDate        models.Date `json:"from_date"`
	ToDate          models.Date `json:"to_date"`
	FromCents       int64       `json:"from_cents"`
	ToCents         int64       `json:"to_cents"`
	DeltaEachCents  int64       `json:"delta_each_cents"`
	Quantity        int         `json:"quantity"`
	DeltaTotalCents int64       `json:"delta_total_cents"`
	ChangePct       *float64    `json:"change_pct"`
}

// SeriesPoint is one dated snapshot value.
type SeriesPoint struct {
	Date  models.Date
	Cents int64
}

// MoverSeries holds the window endpoints of one market item. A nil endpoint
// means no snapshot exists for it.
type MoverSeries struct {
	MarketItemID uint
	Game         models.Game
	Name         string
	Quantity     int
	From         *SeriesPoint
	To           *SeriesPoint
}

// MoversOptions controls ComputeMovers. CatalogWide ranks impact by the
// per-unit change since no quantity is held.
type MoversOptions struct {
	Sort        MoversSort
	Limit       int
	CatalogWide bool
}

// ComputeMovers turns window endpoints into ranked movers. Items missing
// either endpoint, or whose endpoints fall on the same day, are excluded
// from both orderings. Ties break on market item id.
func ComputeMovers(series []MoverSeries, opts MoversOptions) []Mover {
	movers := make([]Mover, 0, len(series))
	for _, s := range series {
		if s.From == nil || s.To == nil || !s.From.Date.Before(s.To.Date) {
			continue
		}
		m := Mover{
			MarketItemID:   s.MarketItemID,
			Game:           s.Game,
			Name:           s.Name,
			FromDate:       s.From.Date,
			ToDate:         s.To.Date,
			FromCents:      s.From.Cents,
			ToCents:        s.To.Cents,
			DeltaEachCents: s.To.Cents - s.From.Cents,
			Quantity:       s.Quantity,
		}
		m.DeltaTotalCents = m.DeltaEachCents * int64(s.Quantity)
		if s.From.Cents != 0 {
			pct := float64(m.DeltaEachCents) * 100 / float64(s.From.Cents)
			m.ChangePct = &pct
		}
		if opts.Sort == MoversSortPercent && m.ChangePct == nil {
			continue
		}
		movers = append(movers, m)
	}

	key := func(m Mover) float64 {
		switch {
		case opts.Sort == MoversSortPercent:
			return math.Abs(*m.ChangePct)
		case opts.CatalogWide:
			return math.Abs(float64(m.DeltaEachCents))
		default:
			return math.Abs(float64(m.DeltaTotalCents))
		}
	}
	sort.SliceStable(movers, func(i, j int) bool {
		ki, kj := key(movers[i]), key(movers[j])
		if ki != kj {
			return ki > kj
		}
		return movers[i].MarketItemID < movers[j].MarketItemID
	})

	if opts.Limit > 0 && len(movers) > opts.Limit {
		movers = movers[:opts.Limit]
	}
	return movers
}

// SnapshotSummary reports one rollup pass.
type SnapshotSummary struct {
	AsOfDate models.Date `json:"as_of_date"`
	Items    int         `json:"items"`
	Written  int         `json:"written"`
	Unpriced int         `json:"unpriced"`
}

// MarketService maintains catalog-wide daily snapshots and answers movers queries.
type MarketService struct {
	db       *gorm.DB
	resolver *PriceResolver
	fx       pricing.FXTable
	now      func() time.Time
}

func NewMarketService(db *gorm.DB, resolver *PriceResolver, fx pricing.FXTable) *MarketService {
	return &MarketService{db: db, resolver: resolver, fx: fx, now: time.Now}
}

// SnapshotAll writes one snapshot per active market item for asOf, taking
// the most recently updated price across the item's sources.
func (s *MarketService) SnapshotAll(ctx context.Context, asOf models.Date) (SnapshotSummary, error) {
	if asOf.IsZero() {
		asOf = models.DateOf(s.now())
	}
	summary := SnapshotSummary{AsOfDate: asOf}
	s.resolver.Purge()

	var items []models.MarketItem
	if err := s.db.WithContext(ctx).Preload("Sources", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("active = ?", true).Order("id ASC").Find(&items).Error; err != nil {
		return summary, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load market items: %w", err))
	}
	summary.Items = len(items)

	now := s.now()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		snap, ok := s.bestSnapshot(ctx, item, asOf, now)
		if !ok {
			summary.Unpriced++
			logger.Get().Debugf("Market: no price for item %d (%s) on %s", item.ID, item.Name, asOf)
			continue
		}

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "market_item_id"}, {Name: "as_of_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"value_cents", "low_cents", "high_cents", "currency", "confidence", "sales_count", "source", "updated_at",
			}),
		}).Create(&snap).Error
		if err != nil {
			return summary, apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("upsert snapshot for market item %d: %w", item.ID, err))
		}
		summary.Written++
		metrics.MarketSnapshotsWritten.Inc()
	}

	metrics.MarketItemsUnpriced.Set(float64(summary.Unpriced))
	logger.Get().Infof("Market: rollup for %s wrote %d of %d items (%d unpriced)",
		asOf, summary.Written, summary.Items, summary.Unpriced)
	return summary, nil
}

// bestSnapshot prices every source of item and keeps the most recent quote.
// Low and high span all usable sources.
func (s *MarketService) bestSnapshot(ctx context.Context, item models.MarketItem, asOf models.Date, now time.Time) (models.MarketPriceSnapshot, bool) {
	var best *Quote
	var low, high int64
	var sales *int

	for _, src := range item.Sources {
		q, err := s.resolver.Lookup(ctx, src.Vendor, item.Game, src.ExternalID, src.Variant)
		if err != nil {
			logger.Get().Warnw("Market: source lookup failed",
				"market_item_id", item.ID, "vendor", src.Vendor, "external_id", src.ExternalID, "error", err)
			continue
		}
		if q == nil {
			continue
		}

		usd, ok := s.fx.Convert(pricing.Price{AmountCents: q.AmountCents, Currency: q.Currency}, models.CurrencyUSD)
		if !ok {
			continue
		}
		converted := *q
		converted.AmountCents = usd.AmountCents
		converted.Currency = models.CurrencyUSD

		if low == 0 || converted.AmountCents < low {
			low = converted.AmountCents
		}
		if converted.AmountCents > high {
			high = converted.AmountCents
		}
		if q.SalesCount != nil && (sales == nil || *q.SalesCount > *sales) {
			n := *q.SalesCount
			sales = &n
		}
		if best == nil || converted.UpdatedAt.After(best.UpdatedAt) {
			best = &converted
		}
	}

	if best == nil {
		return models.MarketPriceSnapshot{}, false
	}
	return models.MarketPriceSnapshot{
		MarketItemID: item.ID,
		AsOfDate:     asOf,
		ValueCents:   best.AmountCents,
		LowCents:     &low,
		HighCents:    &high,
		Currency:     models.CurrencyUSD,
		Confidence:   best.Confidence,
		SalesCount:   sales,
		Source:       best.Source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, true
}

func (q MoversQuery) normalized(today models.Date) (MoversQuery, error) {
	if q.WindowDays == 0 {
		q.WindowDays = defaultMoversWindow
	}
	if q.WindowDays < 0 {
		return q, apperrors.WithMessage(apperrors.ErrInvalidInput, "window must be a positive number of days")
	}
	if q.Limit <= 0 {
		q.Limit = defaultMoversLimit
	}
	if q.Limit > maxMoversLimit {
		q.Limit = maxMoversLimit
	}
	sortBy, ok := ParseMoversSort(string(q.Sort))
	if !ok {
		return q, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown movers sort %q", q.Sort))
	}
	q.Sort = sortBy
	if q.AsOf.IsZero() {
		q.AsOf = today
	}
	return q, nil
}

// Movers ranks catalog-wide price changes over the query window.
func (s *MarketService) Movers(ctx context.Context, q MoversQuery) ([]Mover, error) {
	q, err := q.normalized(models.DateOf(s.now()))
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("active = ?", true)
	if q.Game != "" {
		query = query.Where("game = ?", q.Game)
	}
	var items []models.MarketItem
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load market items: %w", err))
	}

	quantities := make(map[uint]int, len(items))
	for _, item := range items {
		quantities[item.ID] = 0
	}

	series, err := s.series(ctx, items, quantities, q)
	if err != nil {
		return nil, err
	}
	return ComputeMovers(series, MoversOptions{Sort: q.Sort, Limit: q.Limit, CatalogWide: true}), nil
}

// UserMovers ranks price changes of the market items a user holds, scaled
// by held quantity.
func (s *MarketService) UserMovers(ctx context.Context, userID string, q MoversQuery) ([]Mover, error) {
	if userID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	}
	q, err := q.normalized(models.DateOf(s.now()))
	if err != nil {
		return nil, err
	}

	var holdings []models.CollectionItem
	if err := s.db.WithContext(ctx).Where("user_id = ? AND external_id <> ''", userID).Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load collection: %w", err))
	}
	if len(holdings) == 0 {
		return []Mover{}, nil
	}

	externalIDs := make([]string, 0, len(holdings))
	for _, h := range holdings {
		externalIDs = append(externalIDs, h.ExternalID)
	}

	var sources []models.MarketItemSource
	if err := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&sources).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load market sources: %w", err))
	}
	itemIDs := make([]uint, 0, len(sources))
	for _, src := range sources {
		itemIDs = append(itemIDs, src.MarketItemID)
	}
	if len(itemIDs) == 0 {
		return []Mover{}, nil
	}

	var items []models.MarketItem
	query := s.db.WithContext(ctx).Where("id IN ? AND active = ?", itemIDs, true)
	if q.Game != "" {
		query = query.Where("game = ?", q.Game)
	}
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load market items: %w", err))
	}

	byID := make(map[uint]models.MarketItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	// A holding maps to a market item when game, external id and variant agree.
	quantities := map[uint]int{}
	for _, h := range holdings {
		game, ok := h.CanonicalGame()
		if !ok {
			continue
		}
		matched := map[uint]bool{}
		for _, src := range sources {
			item, ok := byID[src.MarketItemID]
			if !ok || matched[item.ID] || item.Game != game || src.ExternalID != h.ExternalID || src.Variant != h.Variant {
				continue
			}
			matched[item.ID] = true
			quantities[item.ID] += h.Quantity
		}
	}

	held := make([]models.MarketItem, 0, len(quantities))
	for _, item := range items {
		if _, ok := quantities[item.ID]; ok {
			held = append(held, item)
		}
	}

	series, err := s.series(ctx, held, quantities, q)
	if err != nil {
		return nil, err
	}
	return ComputeMovers(series, MoversOptions{Sort: q.Sort, Limit: q.Limit}), nil
}

// series loads window endpoints: from is the earliest snapshot on or after
// the window start, to the latest on or before q.AsOf.
func (s *MarketService) series(ctx context.Context, items []models.MarketItem, quantities map[uint]int, q MoversQuery) ([]MoverSeries, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	start := q.AsOf.AddDays(-q.WindowDays)
	var snaps []models.MarketPriceSnapshot
	if err := s.db.WithContext(ctx).
		Where("market_item_id IN ? AND as_of_date >= ? AND as_of_date <= ?", ids, start, q.AsOf).
		Order("market_item_id ASC").Order("as_of_date ASC").
		Find(&snaps).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("load snapshots: %w", err))
	}

	endpoints := make(map[uint]*MoverSeries, len(items))
	out := make([]MoverSeries, 0, len(items))
	for _, item := range items {
		out = append(out, MoverSeries{
			MarketItemID: item.ID,
			Game:         item.Game,
			Name:         item.Name,
			Quantity:     quantities[item.ID],
		})
	}
	for i := range out {
		endpoints[out[i].MarketItemID] = &out[i]
	}

	for _, snap := range snaps {
		ms, ok := endpoints[snap.MarketItemID]
		if !ok {
			continue
		}
		point := &SeriesPoint{Date: snap.AsOfDate, Cents: snap.ValueCents}
		if ms.From == nil {
			ms.From = point
		}
		ms.To = point
	}
	return out, nil
}
