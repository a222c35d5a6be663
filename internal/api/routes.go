package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/codyseavey/ir-tracker/internal/api/handlers"
	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/config"
	"github.com/codyseavey/ir-tracker/internal/services"
)

// Dependencies are the services the router exposes. Redis may be nil.
type Dependencies struct {
	Config      *config.Config
	Tokens      *auth.TokenManager
	Google      *auth.GoogleHandler
	Catalog     *services.CatalogService
	Stats       *services.StatsService
	Wishlist    *services.WishlistService
	Binders     *services.BinderService
	Marketplace *services.MarketplaceService
	Quota       handlers.QuotaReporter
	Sync        *services.CatalogSyncService
	Redis       *redis.Client
}

func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	router := gin.Default()
	router.Use(metricsMiddleware())

	frontendPath := cfg.FrontendDistPath
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration; credentials are needed for the session cookie
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(deps.Tokens.Middleware())

	// Initialize handlers
	cardHandler := handlers.NewCardHandler(deps.Catalog)
	statsHandler := handlers.NewStatsHandler(deps.Stats)
	wishlistHandler := handlers.NewWishlistHandler(deps.Wishlist)
	binderHandler := handlers.NewBinderHandler(deps.Binders)
	marketplaceHandler := handlers.NewMarketplaceHandler(deps.Marketplace, deps.Quota)
	adminHandler := handlers.NewAdminHandler(deps.Sync)

	statsLimiter := NewRateLimiter(deps.Redis, cfg.Redis.RateLimit, cfg.Redis.Window, "stats")
	marketLimiter := NewRateLimiter(deps.Redis, cfg.Redis.RateLimit, cfg.Redis.Window, "marketplace")

	// Auth routes
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/google/login", deps.Google.Login)
		authGroup.GET("/google/callback", deps.Google.Callback)
		authGroup.POST("/logout", deps.Google.Logout)
	}

	// API routes
	api := router.Group("/api", auth.RequireUser())
	{
		api.GET("/me", handlers.GetMe)

		expansions := api.Group("/expansions")
		{
			expansions.GET("", cardHandler.ListExpansions)
			expansions.GET("/:slug/cards", cardHandler.GetExpansionCards)
		}

		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.PUT("/collected", cardHandler.BulkSetCollected)
			cards.PATCH("/:id/collected", cardHandler.SetCollected)
		}

		stats := api.Group("/stats", statsLimiter.Middleware())
		{
			stats.GET("", statsHandler.GetStats)
			stats.POST("/refresh", statsHandler.RefreshStats)
		}

		binders := api.Group("/binders")
		{
			binders.GET("", binderHandler.ListBinders)
			binders.POST("", binderHandler.CreateBinder)
			binders.GET("/:id", binderHandler.GetBinder)
			binders.DELETE("/:id", binderHandler.DeleteBinder)
			binders.GET("/:id/slots", binderHandler.ListSlots)
			binders.PUT("/:id/slots/:slot", binderHandler.PlaceCard)
			binders.DELETE("/:id/slots/:slot", binderHandler.RemoveCard)
		}

		wishlist := api.Group("/wishlist")
		{
			wishlist.GET("", wishlistHandler.ListWishlist)
			wishlist.POST("", wishlistHandler.AddToWishlist)
			wishlist.DELETE("", wishlistHandler.ClearWishlist)
			wishlist.DELETE("/:id", wishlistHandler.RemoveFromWishlist)
		}

		marketplace := api.Group("/marketplace")
		{
			marketplace.POST("/search", marketLimiter.Middleware(), marketplaceHandler.Search)
			marketplace.POST("/best-price", marketLimiter.Middleware(), marketplaceHandler.BestPrice)
			marketplace.GET("/status", marketplaceHandler.GetStatus)
		}

		admin := api.Group("/admin", auth.RequireAdmin(cfg.Auth.AdminUsers))
		{
			admin.POST("/sync", adminHandler.SyncCatalog)
			admin.GET("/sync", adminHandler.GetSyncStatus)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		router.Static("/assets", filepath.Join(frontendPath, "assets"))
		router.StaticFile("/vite.svg", filepath.Join(frontendPath, "vite.svg"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
				return
			}
			c.File(indexPath)
		})
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
