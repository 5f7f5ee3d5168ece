package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tcg-valuation/internal/api/handlers"
	"github.com/codyseavey/tcg-valuation/internal/api/middleware"
	"github.com/codyseavey/tcg-valuation/internal/api/validator"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

// Services bundles what the router needs.
type Services struct {
	Resolver    *services.PriceResolver
	Revaluation *services.RevaluationService
	Portfolio   *services.PortfolioService
	Market      *services.MarketService
	Pipeline    *services.Pipeline
}

func SetupRouter(allowedOrigins []string, svc Services) *gin.Engine {
	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogging(), middleware.Metrics())

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	priceHandler := handlers.NewPriceHandler(svc.Resolver)
	portfolioHandler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Revaluation)
	marketHandler := handlers.NewMarketHandler(svc.Market)
	jobHandler := handlers.NewJobHandler(svc.Pipeline)

	api := router.Group("/api")
	{
		api.GET("/prices/:game/:externalId", priceHandler.GetPrice)

		users := api.Group("/users/:userId")
		{
			users.GET("/portfolio/history", portfolioHandler.GetHistory)
			users.GET("/portfolio/latest", portfolioHandler.GetLatest)
			users.GET("/valuations", portfolioHandler.GetValuations)
			users.POST("/revalue", portfolioHandler.Revalue)
			users.GET("/movers", marketHandler.GetUserMovers)
		}

		market := api.Group("/market")
		{
			market.GET("/movers", marketHandler.GetMovers)
			market.POST("/rollup", marketHandler.Rollup)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.POST("/run", jobHandler.RunPipeline)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
