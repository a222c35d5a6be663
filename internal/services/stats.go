package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

// StatsTTL is how long cached expansion totals are trusted
const StatsTTL = 24 * time.Hour

// recomputeTimeout bounds a shared recompute, which outlives the request that started it
const recomputeTimeout = 5 * time.Minute

// StatsService computes per-user completion of each expansion
type StatsService struct {
	db         *gorm.DB
	catalog    CardCatalog
	catalogSvc *CatalogService
	fanOut     int

	// concurrent stale reads and refreshes share one catalog fetch
	recomputes singleflight.Group
	now        func() time.Time
}

func NewStatsService(db *gorm.DB, catalog CardCatalog, catalogSvc *CatalogService, fanOut int) *StatsService {
	if fanOut < 1 {
		fanOut = 1
	}
	return &StatsService{
		db:         db,
		catalog:    catalog,
		catalogSvc: catalogSvc,
		fanOut:     fanOut,
		now:        time.Now,
	}
}

// GetExpansionStats returns total, collected and percentage keyed by expansion slug
func (s *StatsService) GetExpansionStats(ctx context.Context, userID string) (map[string]models.ExpansionStat, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	expansions, err := s.catalogSvc.ListExpansions(ctx)
	if err != nil {
		return nil, err
	}

	totals, err := s.totals(ctx, expansions, false)
	if err != nil {
		return nil, err
	}

	collected, err := s.collectedCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]models.ExpansionStat, len(expansions))
	for _, e := range expansions {
		total := totals.Counts[e.Slug]
		got := collected[e.Slug]
		result[e.Slug] = models.ExpansionStat{
			Name:       e.Name,
			Total:      total,
			Collected:  got,
			Percentage: completionPercentage(got, total),
		}
	}
	return result, nil
}

// RefreshTotals recomputes expansion totals from the catalog regardless of age
func (s *StatsService) RefreshTotals(ctx context.Context) (*models.Stats, error) {
	expansions, err := s.catalogSvc.ListExpansions(ctx)
	if err != nil {
		return nil, err
	}
	return s.totals(ctx, expansions, true)
}

// EnsureFreshTotals recomputes totals only when the cached row is missing or stale
func (s *StatsService) EnsureFreshTotals(ctx context.Context) error {
	expansions, err := s.catalogSvc.ListExpansions(ctx)
	if err != nil {
		return err
	}
	if len(expansions) == 0 {
		return nil
	}
	_, err = s.totals(ctx, expansions, false)
	return err
}

// InvalidateTotals drops the cached totals so the next read recomputes them
func (s *StatsService) InvalidateTotals(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("type = ?", models.StatsTypeExpansionTotals).Delete(&models.Stats{}).Error
}

func (s *StatsService) totals(ctx context.Context, expansions []models.Expansion, force bool) (*models.Stats, error) {
	cached, err := s.loadTotals(ctx)
	if err != nil {
		return nil, err
	}
	if !force && cached != nil && s.now().Sub(cached.LastUpdated) < StatsTTL {
		return cached, nil
	}

	ch := s.recomputes.DoChan(models.StatsTypeExpansionTotals, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recomputeTimeout)
		defer cancel()
		return s.recompute(rctx, expansions)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if cached != nil && !force {
				log.Printf("Stats: recompute failed, serving totals from %s: %v", cached.LastUpdated.Format(time.RFC3339), res.Err)
				return cached, nil
			}
			return nil, res.Err
		}
		return res.Val.(*models.Stats), nil
	}
}

func (s *StatsService) loadTotals(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	err := s.db.WithContext(ctx).Where("type = ?", models.StatsTypeExpansionTotals).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if st.Counts == nil {
		st.Counts = map[string]int{}
	}
	return &st, nil
}

func (s *StatsService) recompute(ctx context.Context, expansions []models.Expansion) (*models.Stats, error) {
	start := time.Now()
	defer func() {
		metrics.StatsRecomputeDuration.Observe(time.Since(start).Seconds())
	}()

	counts := make([]int, len(expansions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, e := range expansions {
		g.Go(func() error {
			cards, err := s.catalog.GetSetCards(gctx, e.ID, models.TrackedRarities()...)
			if err != nil {
				return fmt.Errorf("count %s: %w", e.Slug, err)
			}
			counts[i] = len(cards)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.StatsRecomputeTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	st := &models.Stats{
		Type:        models.StatsTypeExpansionTotals,
		Counts:      make(map[string]int, len(expansions)),
		LastUpdated: s.now().UTC(),
	}
	for i, e := range expansions {
		st.Counts[e.Slug] = counts[i]
		st.TotalCount += counts[i]
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(st).Error
	if err != nil {
		metrics.StatsRecomputeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save stats: %w", err)
	}

	metrics.StatsRecomputeTotal.WithLabelValues("ok").Inc()
	log.Printf("Stats: recomputed totals for %d expansions (%d cards) in %v", len(expansions), st.TotalCount, time.Since(start))
	return st, nil
}

type expansionCount struct {
	Expansion string
	Count     int
}

// collectedCounts counts the user's collected cards per expansion, using the
// template rows for the expansion since user rows only hold the flag
func (s *StatsService) collectedCounts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []expansionCount
	err := s.db.WithContext(ctx).
		Table("cards AS u").
		Select("t.expansion AS expansion, COUNT(*) AS count").
		Joins("JOIN cards AS t ON t.id = u.id AND t.user_id = ''").
		Where("u.user_id = ? AND u.is_collected = ?", userID, true).
		Group("t.expansion").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count collected cards: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Expansion] = r.Count
	}
	return counts, nil
}

// completionPercentage rounds to the nearest whole percent; an empty expansion is 0%
func completionPercentage(collected, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(collected) / float64(total)))
}
