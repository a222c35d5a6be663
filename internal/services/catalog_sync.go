package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

// CatalogSyncService copies expansions and tracked-rarity cards from the catalog
// into template rows
type CatalogSyncService struct {
	catalog    CardCatalog
	catalogSvc *CatalogService
	stats      *StatsService
	series     []string
	fanOut     int

	mu      sync.Mutex
	running bool
}

// SyncResult summarizes one sync run
type SyncResult struct {
	ExpansionsSynced int           `json:"expansionsSynced"`
	CardsUpserted    int           `json:"cardsUpserted"`
	Errors           []string      `json:"errors,omitempty"`
	Duration         time.Duration `json:"duration"`
}

func NewCatalogSyncService(catalog CardCatalog, catalogSvc *CatalogService, stats *StatsService, series []string, fanOut int) *CatalogSyncService {
	if fanOut < 1 {
		fanOut = 1
	}
	return &CatalogSyncService{
		catalog:    catalog,
		catalogSvc: catalogSvc,
		stats:      stats,
		series:     series,
		fanOut:     fanOut,
	}
}

// IsRunning returns whether a sync is currently in progress
func (s *CatalogSyncService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *CatalogSyncService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *CatalogSyncService) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// SyncAll syncs every expansion of the configured series. A failing expansion is
// recorded in the result and does not stop the others.
func (s *CatalogSyncService) SyncAll(ctx context.Context) (*SyncResult, error) {
	if !s.begin() {
		return nil, fmt.Errorf("%w: catalog sync already running", ErrConflict)
	}
	defer s.end()

	start := time.Now()
	result := &SyncResult{}

	expansions, err := s.catalog.GetSets(ctx, s.series...)
	if err != nil {
		return nil, err
	}
	if err := s.catalogSvc.UpsertExpansions(ctx, expansions); err != nil {
		return nil, err
	}
	log.Printf("CatalogSync: %d expansions in series %v", len(expansions), s.series)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for _, exp := range expansions {
		g.Go(func() error {
			n, err := s.syncCards(gctx, exp)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("CatalogSync: failed to sync %s: %v", exp.Slug, err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", exp.Slug, err))
				return nil
			}
			result.ExpansionsSynced++
			result.CardsUpserted += n
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	s.finish(ctx)
	result.Duration = time.Since(start)
	log.Printf("CatalogSync: completed in %v - %d expansions, %d cards, %d errors",
		result.Duration, result.ExpansionsSynced, result.CardsUpserted, len(result.Errors))
	return result, nil
}

// SyncExpansion syncs a single expansion by slug
func (s *CatalogSyncService) SyncExpansion(ctx context.Context, slug string) (*SyncResult, error) {
	if !s.begin() {
		return nil, fmt.Errorf("%w: catalog sync already running", ErrConflict)
	}
	defer s.end()

	slug, err := parseSlug(slug)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	exp, err := s.catalog.GetSet(ctx, slug)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: expansion %s", ErrNotFound, slug)
	}
	if err := s.catalogSvc.UpsertExpansions(ctx, []models.Expansion{*exp}); err != nil {
		return nil, err
	}

	n, err := s.syncCards(ctx, *exp)
	if err != nil {
		return nil, err
	}

	s.finish(ctx)
	result := &SyncResult{ExpansionsSynced: 1, CardsUpserted: n, Duration: time.Since(start)}
	log.Printf("CatalogSync: synced %s (%d cards) in %v", exp.Slug, n, result.Duration)
	return result, nil
}

func (s *CatalogSyncService) syncCards(ctx context.Context, exp models.Expansion) (int, error) {
	cards, err := s.catalog.GetSetCards(ctx, exp.ID, models.TrackedRarities()...)
	if err != nil {
		return 0, err
	}
	tracked := cards[:0]
	for _, c := range cards {
		if !c.Type.IsValid() {
			continue
		}
		c.Expansion = exp.Slug
		tracked = append(tracked, c)
	}
	n, err := s.catalogSvc.UpsertTemplates(ctx, tracked)
	if err != nil {
		return 0, err
	}
	metrics.CatalogSyncCardsTotal.Add(float64(n))
	return n, nil
}

// finish drops caches that depend on the template set
func (s *CatalogSyncService) finish(ctx context.Context) {
	s.catalogSvc.InvalidateExpansions()
	if s.stats != nil {
		if err := s.stats.InvalidateTotals(ctx); err != nil {
			log.Printf("CatalogSync: failed to invalidate stats: %v", err)
		}
	}
	if n, err := s.catalogSvc.CountTemplates(ctx); err == nil {
		metrics.TemplateCardsTotal.Set(float64(n))
	}
}
