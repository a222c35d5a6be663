package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codyseavey/ir-tracker/internal/models"
)

func TestCompletionPercentage(t *testing.T) {
	tests := []struct {
		collected, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{3, 4, 75},
		{1, 3, 33},
		{2, 3, 67},
		{4, 4, 100},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := completionPercentage(tt.collected, tt.total); got != tt.want {
			t.Errorf("completionPercentage(%d, %d) = %d, want %d", tt.collected, tt.total, got, tt.want)
		}
	}
}

func TestGetExpansionStats(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 2)
	ctx := context.Background()

	for _, id := range []string{"sv1-199", "sv1-200", "sv1-245"} {
		if _, err := catalogSvc.SetCollected(ctx, "user-1", id, true); err != nil {
			t.Fatalf("SetCollected(%s) error = %v", id, err)
		}
	}

	got, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetExpansionStats() error = %v", err)
	}

	sv1 := got["sv1"]
	if sv1.Total != 4 || sv1.Collected != 3 || sv1.Percentage != 75 {
		t.Errorf("sv1 = %+v, want total 4, collected 3, 75%%", sv1)
	}
	if sv1.Name != "Scarlet & Violet" {
		t.Errorf("sv1 name = %q", sv1.Name)
	}
	sv2 := got["sv2"]
	if sv2.Total != 1 || sv2.Collected != 0 || sv2.Percentage != 0 {
		t.Errorf("sv2 = %+v, want total 1, collected 0", sv2)
	}
}

func TestGetExpansionStatsUsesCachedTotals(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 4)
	ctx := context.Background()

	if _, err := stats.GetExpansionStats(ctx, "user-1"); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	first := fc.calls()
	if first != 2 {
		t.Fatalf("expected one fetch per expansion, got %d", first)
	}

	if _, err := stats.GetExpansionStats(ctx, "user-1"); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if fc.calls() != first {
		t.Errorf("fresh totals should not refetch, calls went %d -> %d", first, fc.calls())
	}

	// Past the TTL the totals are recomputed
	stats.now = func() time.Time { return time.Now().Add(StatsTTL + time.Minute) }
	if _, err := stats.GetExpansionStats(ctx, "user-1"); err != nil {
		t.Fatalf("stale call error = %v", err)
	}
	if fc.calls() != first+2 {
		t.Errorf("stale totals should refetch, calls = %d", fc.calls())
	}
}

func TestGetExpansionStatsFallsBackToStaleTotals(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 1)
	ctx := context.Background()

	if _, err := stats.RefreshTotals(ctx); err != nil {
		t.Fatalf("RefreshTotals() error = %v", err)
	}

	fc.err = ErrUpstream
	stats.now = func() time.Time { return time.Now().Add(2 * StatsTTL) }

	got, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected stale totals to be served, got %v", err)
	}
	if got["sv1"].Total != 4 {
		t.Errorf("expected stale total 4, got %d", got["sv1"].Total)
	}

	if _, err := stats.RefreshTotals(ctx); !errors.Is(err, ErrUpstream) {
		t.Errorf("forced refresh should surface the upstream error, got %v", err)
	}
}

func TestGetExpansionStatsNotBlockedByRefresh(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 2)

	if _, err := stats.RefreshTotals(context.Background()); err != nil {
		t.Fatalf("RefreshTotals() error = %v", err)
	}
	warm := fc.calls()

	release := make(chan struct{})
	fc.setBlock(release)
	refreshed := make(chan error, 1)
	go func() {
		_, err := stats.RefreshTotals(context.Background())
		refreshed <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fc.calls() == warm {
		if time.Now().After(deadline) {
			t.Fatal("refresh never reached the catalog")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Fresh totals are served while the refresh is stuck upstream
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetExpansionStats() during refresh error = %v", err)
	}
	if got["sv1"].Total != 4 {
		t.Errorf("sv1 total = %d, want 4", got["sv1"].Total)
	}

	// A second refresh joins the running one but gives up with its own context
	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	start := time.Now()
	if _, err := stats.RefreshTotals(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("joined refresh error = %v, want deadline exceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("joined refresh ignored its deadline, waited %v", waited)
	}

	close(release)
	select {
	case err := <-refreshed:
		if err != nil {
			t.Errorf("blocked refresh error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not finish after release")
	}
}

func TestGetExpansionStatsRequiresUser(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 1)

	if _, err := stats.GetExpansionStats(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

// Toggle a card, watch the stats move by one, then toggle it back.
func TestToggleUpdatesStatsEndToEnd(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	stats := NewStatsService(db, fc, catalogSvc, 2)
	ctx := context.Background()

	before, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetExpansionStats() error = %v", err)
	}

	card, err := catalogSvc.SetCollected(ctx, "user-1", "sv1-200", true)
	if err != nil {
		t.Fatalf("SetCollected(true) error = %v", err)
	}
	if !card.IsCollected || card.DateCollected == nil {
		t.Fatalf("expected collected card with a date, got %+v", card)
	}
	y1, m1, d1 := card.DateCollected.Date()
	y2, m2, d2 := time.Now().UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		t.Errorf("dateCollected %v is not today", card.DateCollected)
	}

	during, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetExpansionStats() error = %v", err)
	}
	if during["sv1"].Collected != before["sv1"].Collected+1 {
		t.Errorf("collected went %d -> %d, want +1", before["sv1"].Collected, during["sv1"].Collected)
	}

	card, err = catalogSvc.SetCollected(ctx, "user-1", "sv1-200", false)
	if err != nil {
		t.Fatalf("SetCollected(false) error = %v", err)
	}
	if card.DateCollected != nil {
		t.Errorf("expected dateCollected cleared, got %v", card.DateCollected)
	}

	after, err := stats.GetExpansionStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetExpansionStats() error = %v", err)
	}
	if after["sv1"].Collected != before["sv1"].Collected {
		t.Errorf("collected went %d -> %d, want back to start", during["sv1"].Collected, after["sv1"].Collected)
	}

	var stored models.Card
	db.Where("id = ? AND user_id = ?", "sv1-200", "user-1").First(&stored)
	if stored.IsCollected || stored.DateCollected != nil {
		t.Errorf("stored row = %+v, want uncollected with null date", stored)
	}
}
