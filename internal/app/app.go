// Package app builds the service graph shared by the server and the CLIs.
package app

import (
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/api"
	"github.com/codyseavey/tcg-valuation/internal/config"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
	"github.com/codyseavey/tcg-valuation/internal/services"
	"github.com/codyseavey/tcg-valuation/internal/vendors"
)

// App holds every long-lived service.
type App struct {
	Resolver    *services.PriceResolver
	Sync        *services.SyncService
	Market      *services.MarketService
	Revaluation *services.RevaluationService
	Portfolio   *services.PortfolioService
	Pipeline    *services.Pipeline
}

// New wires services over db from cfg.
func New(cfg *config.Config, db *gorm.DB) *App {
	resolver := services.NewPriceResolver(db, services.ResolverOptions{
		CacheSize:  cfg.Resolver.CacheSize,
		CacheTTL:   cfg.Resolver.CacheTTLDuration(),
		StaleAfter: cfg.Resolver.StaleAfterDuration(),
	})
	fx := pricing.NewFXTable(cfg.FX)

	opts := vendors.Options{RatePerSecond: cfg.Vendors.RatePerSecond}
	pokemonOpts := opts
	pokemonOpts.APIKey = cfg.Vendors.PokemonTCGAPIKey

	syncSvc := services.NewSyncService(db, services.SyncClients{
		PokemonTCG: vendors.NewPokemonTCGClient(pokemonOpts),
		Scryfall:   vendors.NewScryfallClient(opts),
		YGOPRODeck: vendors.NewYGOPRODeckClient(opts),
	}, cfg.Vendors.BatchSize)

	market := services.NewMarketService(db, resolver, fx)
	revaluation := services.NewRevaluationService(db, resolver, fx)

	return &App{
		Resolver:    resolver,
		Sync:        syncSvc,
		Market:      market,
		Revaluation: revaluation,
		Portfolio:   services.NewPortfolioService(db),
		Pipeline:    services.NewPipeline(db, syncSvc, market, revaluation, cfg.Pipeline.Steps),
	}
}

// APIServices returns the subset the HTTP router needs.
func (a *App) APIServices() api.Services {
	return api.Services{
		Resolver:    a.Resolver,
		Revaluation: a.Revaluation,
		Portfolio:   a.Portfolio,
		Market:      a.Market,
		Pipeline:    a.Pipeline,
	}
}
