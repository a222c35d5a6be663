package services

import (
	"context"
	"log"
	"time"
)

// StatsRefresher keeps expansion totals warm in the background so user requests
// rarely pay for a full catalog recompute
type StatsRefresher struct {
	stats         *StatsService
	checkInterval time.Duration
}

func NewStatsRefresher(stats *StatsService, checkInterval time.Duration) *StatsRefresher {
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	return &StatsRefresher{
		stats:         stats,
		checkInterval: checkInterval,
	}
}

// Start runs until ctx is cancelled
func (r *StatsRefresher) Start(ctx context.Context) {
	log.Printf("Stats refresher started: checking totals every %v", r.checkInterval)

	r.check(ctx)

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stats refresher stopping...")
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

func (r *StatsRefresher) check(ctx context.Context) {
	if err := r.stats.EnsureFreshTotals(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Stats refresher: failed to refresh totals: %v", err)
	}
}
