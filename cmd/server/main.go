package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/ir-tracker/internal/api"
	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/config"
	"github.com/codyseavey/ir-tracker/internal/database"
	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.Open(cfg.DBPath, cfg.DBDebug)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; without it rate limiting is off
	redisClient, err := database.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		redisClient = nil
	}

	upstreamOpts := services.UpstreamOptions{
		Timeout:    cfg.Upstream.Timeout,
		Retries:    cfg.Upstream.Retries,
		RatePerSec: cfg.Upstream.RatePerSec,
	}

	// Upstream clients
	catalog := services.NewPokemonTCGService(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, upstreamOpts)
	cardTrader := services.NewCardTraderService(cfg.Market.BaseURL, cfg.Market.Token, cfg.Market.DailyLimit, upstreamOpts)
	if !cardTrader.IsConfigured() {
		log.Println("CARDTRADER_TOKEN not set, marketplace lookups will likely be rejected")
	}
	metrics.MarketplaceQuotaRemaining.Set(float64(cardTrader.GetRequestsRemaining()))

	expansionMap, err := services.NewExpansionMap(cfg.Market.ExpansionIDs)
	if err != nil {
		log.Fatalf("Invalid MARKETPLACE_EXPANSION_IDS: %v", err)
	}

	// Domain services
	catalogService := services.NewCatalogService(db, catalog)
	statsService := services.NewStatsService(db, catalog, catalogService, cfg.Upstream.FanOutLimit)
	wishlistService := services.NewWishlistService(db)
	binderService := services.NewBinderService(db)
	marketplaceService := services.NewMarketplaceService(cardTrader, expansionMap)
	syncService := services.NewCatalogSyncService(catalog, catalogService, statsService, cfg.Catalog.Series, cfg.Upstream.FanOutLimit)

	if n, err := catalogService.CountTemplates(context.Background()); err == nil {
		metrics.TemplateCardsTotal.Set(float64(n))
		log.Printf("Loaded %d template cards", n)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	google := auth.NewGoogleHandler(auth.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:  cfg.Auth.GoogleRedirectURL,
		FrontendURL:  cfg.FrontendURL,
		IsProduction: cfg.IsProduction(),
	}, tokens)
	if !google.Configured() {
		log.Println("Google OAuth credentials not set, login is disabled")
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep expansion totals warm, restarting the refresher if it panics
	if cfg.StatsRefreshInterval > 0 {
		refresher := services.NewStatsRefresher(statsService, cfg.StatsRefreshInterval)
		go func() {
			for {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in stats refresher: %v - restarting in 30 seconds", r)
						}
					}()
					refresher.Start(ctx)
				}()

				select {
				case <-ctx.Done():
					return
				case <-time.After(30 * time.Second):
					log.Println("Stats refresher restarting after panic recovery...")
				}
			}
		}()
	}

	// Optionally sync the catalog on startup
	if cfg.SyncOnStartup {
		go func() {
			log.Println("Starting catalog sync on startup...")
			result, err := syncService.SyncAll(ctx)
			if err != nil {
				log.Printf("Catalog sync failed: %v", err)
				return
			}
			log.Printf("Catalog sync completed: %d expansions, %d cards", result.ExpansionsSynced, result.CardsUpserted)
		}()
	}

	// Setup router
	router := api.SetupRouter(api.Dependencies{
		Config:      cfg,
		Tokens:      tokens,
		Google:      google,
		Catalog:     catalogService,
		Stats:       statsService,
		Wishlist:    wishlistService,
		Binders:     binderService,
		Marketplace: marketplaceService,
		Quota:       cardTrader,
		Sync:        syncService,
		Redis:       redisClient,
	})

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop a running sync
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Failed to close redis: %v", err)
		}
	}
	if err := database.Close(db); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	log.Println("Server exited")
}
