package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/vendors"
)

// SyncResult summarizes one vendor sync for a game.
type SyncResult struct {
	Game         models.Game   `json:"game"`
	Requested    int           `json:"requested"`
	Fetched      int           `json:"fetched"`
	RowsUpserted int           `json:"rows_upserted"`
	Missing      int           `json:"missing"`
	Errors       []string      `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SyncClients holds the vendor clients the sync can use. A nil client
// leaves its games unsynced.
type SyncClients struct {
	PokemonTCG *vendors.PokemonTCGClient
	Scryfall   *vendors.ScryfallClient
	YGOPRODeck *vendors.YGOPRODeckClient
}

// SyncService refreshes vendor price tables for every external id that a
// collection item or market item source references.
type SyncService struct {
	db        *gorm.DB
	clients   SyncClients
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	running map[models.Game]bool
}

func NewSyncService(db *gorm.DB, clients SyncClients, batchSize int) *SyncService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SyncService{
		db:        db,
		clients:   clients,
		batchSize: batchSize,
		now:       time.Now,
		running:   map[models.Game]bool{},
	}
}

// SyncableGames lists the games with a configured vendor client.
func (s *SyncService) SyncableGames() []models.Game {
	var games []models.Game
	if s.clients.PokemonTCG != nil {
		games = append(games, models.GamePokemon)
	}
	if s.clients.YGOPRODeck != nil {
		games = append(games, models.GameYugioh)
	}
	if s.clients.Scryfall != nil {
		games = append(games, models.GameMTG)
	}
	return games
}

// IsRunning reports whether a sync for game is in progress.
func (s *SyncService) IsRunning(game models.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[game]
}

// SyncGame fetches current prices for game and upserts the vendor rows.
// Overlapping calls for the same game return ErrJobRunning.
func (s *SyncService) SyncGame(ctx context.Context, game models.Game) (*SyncResult, error) {
	s.mu.Lock()
	if s.running[game] {
		s.mu.Unlock()
		return nil, apperrors.ErrJobRunning
	}
	s.running[game] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, game)
		s.mu.Unlock()
	}()

	start := time.Now()
	result := &SyncResult{Game: game}

	var vendor models.Vendor
	switch {
	case game == models.GamePokemon && s.clients.PokemonTCG != nil:
		vendor = models.VendorTCGPlayer
	case game == models.GameYugioh && s.clients.YGOPRODeck != nil:
		vendor = models.VendorYGOPRODeck
	case game == models.GameMTG && s.clients.Scryfall != nil:
		vendor = models.VendorScryfall
	default:
		return nil, apperrors.WithMessage(apperrors.ErrUnsupportedGame, fmt.Sprintf("no vendor sync for %s", game))
	}

	ids, err := s.externalIDs(ctx, game, vendor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	result.Requested = len(ids)
	if len(ids) == 0 {
		logger.Get().Infof("Sync: no %s ids to refresh", game)
		result.Duration = time.Since(start)
		return result, nil
	}

	logger.Get().Infof("Sync: refreshing %d %s ids from %s", len(ids), game, vendor)

	switch game {
	case models.GamePokemon:
		err = s.syncPokemon(ctx, ids, result)
	case models.GameYugioh:
		err = s.syncYugioh(ctx, ids, result)
	case models.GameMTG:
		err = s.syncScryfall(ctx, ids, result)
	}

	result.Missing = result.Requested - result.Fetched
	if result.Missing < 0 {
		result.Missing = 0
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		logger.Get().Warnw("Sync: vendor fetch failed", "game", game, "vendor", vendor, "error", err)
		return result, err
	}

	logger.Get().Infof("Sync: %s done: %d fetched, %d rows upserted, %d missing in %v",
		game, result.Fetched, result.RowsUpserted, result.Missing, result.Duration)
	return result, nil
}

// SyncAll syncs every configured game, continuing past per-game failures.
// The first failure is returned alongside all results.
func (s *SyncService) SyncAll(ctx context.Context) ([]*SyncResult, error) {
	var results []*SyncResult
	var firstErr error
	for _, game := range s.SyncableGames() {
		res, err := s.SyncGame(ctx, game)
		if res != nil {
			results = append(results, res)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sync %s: %w", game, err)
		}
	}
	return results, firstErr
}

// externalIDs collects the distinct ids of game referenced by collection
// items and by market item sources of vendor.
func (s *SyncService) externalIDs(ctx context.Context, game models.Game, vendor models.Vendor) ([]string, error) {
	seen := map[string]bool{}

	type holding struct {
		Game       string
		ExternalID string
	}
	var holdings []holding
	if err := s.db.WithContext(ctx).Model(&models.CollectionItem{}).
		Distinct("game", "external_id").
		Where("external_id <> ''").
		Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("load collection ids: %w", err)
	}
	for _, h := range holdings {
		if g, ok := models.NormalizeGame(h.Game); ok && g == game {
			seen[h.ExternalID] = true
		}
	}

	var sourceIDs []string
	if err := s.db.WithContext(ctx).Model(&models.MarketItemSource{}).
		Joins("JOIN market_items ON market_items.id = market_item_sources.market_item_id").
		Where("market_items.game = ? AND market_items.active = ? AND market_item_sources.vendor = ?", game, true, vendor).
		Distinct().
		Pluck("market_item_sources.external_id", &sourceIDs).Error; err != nil {
		return nil, fmt.Errorf("load market source ids: %w", err)
	}
	for _, id := range sourceIDs {
		seen[id] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *SyncService) syncPokemon(ctx context.Context, ids []string, result *SyncResult) error {
	cards, err := s.clients.PokemonTCG.GetCards(ctx, ids, s.batchSize)
	result.Fetched = len(cards)

	now := s.now()
	var tcgRows []models.TCGPlayerPriceRow
	var cmRows []models.CardmarketPriceRow
	for _, card := range cards {
		if row, ok := card.TCGPlayerRow(now); ok {
			tcgRows = append(tcgRows, row)
		}
		if row, ok := card.CardmarketRow(now); ok {
			cmRows = append(cmRows, row)
		}
	}

	n, upsertErr := upsertRows(ctx, s.db, tcgRows, "game", "external_id")
	result.RowsUpserted += n
	metrics.VendorRowsUpserted.WithLabelValues(string(models.VendorTCGPlayer)).Add(float64(n))
	if upsertErr != nil {
		return upsertErr
	}

	n, upsertErr = upsertRows(ctx, s.db, cmRows, "game", "external_id")
	result.RowsUpserted += n
	metrics.VendorRowsUpserted.WithLabelValues(string(models.VendorCardmarket)).Add(float64(n))
	if upsertErr != nil {
		return upsertErr
	}
	return err
}

func (s *SyncService) syncYugioh(ctx context.Context, ids []string, result *SyncResult) error {
	cards, err := s.clients.YGOPRODeck.GetCards(ctx, ids, s.batchSize)
	result.Fetched = len(cards)

	now := s.now()
	var rows []models.YGOPRODeckPriceRow
	for _, card := range cards {
		if row, ok := card.Row(now); ok {
			rows = append(rows, row)
		}
	}

	n, upsertErr := upsertRows(ctx, s.db, rows, "external_id")
	result.RowsUpserted += n
	metrics.VendorRowsUpserted.WithLabelValues(string(models.VendorYGOPRODeck)).Add(float64(n))
	if upsertErr != nil {
		return upsertErr
	}
	return err
}

func (s *SyncService) syncScryfall(ctx context.Context, ids []string, result *SyncResult) error {
	cards, err := s.clients.Scryfall.GetCards(ctx, ids)
	result.Fetched = len(cards)

	now := s.now()
	rows := make([]models.ScryfallPriceRow, 0, len(cards))
	for _, card := range cards {
		rows = append(rows, card.Row(now))
	}

	n, upsertErr := upsertRows(ctx, s.db, rows, "external_id")
	result.RowsUpserted += n
	metrics.VendorRowsUpserted.WithLabelValues(string(models.VendorScryfall)).Add(float64(n))
	if upsertErr != nil {
		return upsertErr
	}
	return err
}

// upsertRows writes rows in batches, replacing existing rows that collide
// on the conflict columns.
func upsertRows[T any](ctx context.Context, db *gorm.DB, rows []T, conflict ...string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := make([]clause.Column, len(conflict))
	for i, name := range conflict {
		cols[i] = clause.Column{Name: name}
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   cols,
		UpdateAll: true,
	}).CreateInBatches(&rows, 100).Error
	if err != nil {
		return 0, fmt.Errorf("upsert vendor rows: %w", err)
	}
	return len(rows), nil
}
