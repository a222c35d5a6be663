package services

import (
	"context"
	"errors"
	"testing"

	"github.com/codyseavey/ir-tracker/internal/models"
)

func TestSyncAllStoresTemplates(t *testing.T) {
	db := newTestDB(t)
	fc := &fakeCatalog{
		sets: []models.Expansion{
			{ID: "sv3pt5", Name: "151", Slug: "sv3pt5", Series: "Scarlet & Violet"},
			{ID: "sv4", Name: "Paradox Rift", Slug: "sv4", Series: "Scarlet & Violet"},
		},
		cards: map[string][]models.Card{
			"sv3pt5": {
				irCard("sv3pt5-166", "Bulbasaur", "sv3pt5", "166"),
				sirCard("sv3pt5-199", "Charizard ex", "sv3pt5", "199"),
				{ID: "sv3pt5-1", Name: "Bulbasaur", Rarity: "Common"},
			},
			"sv4": {
				irCard("sv4-197", "Garganacl", "sv4", "197"),
			},
		},
	}
	catalogSvc := NewCatalogService(db, fc)
	stats := NewStatsService(db, fc, catalogSvc, 2)
	syncer := NewCatalogSyncService(fc, catalogSvc, stats, []string{"Scarlet & Violet"}, 2)
	ctx := context.Background()

	result, err := syncer.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if result.ExpansionsSynced != 2 || result.CardsUpserted != 3 {
		t.Errorf("result = %+v, want 2 expansions and 3 cards", result)
	}

	var templates int64
	db.Model(&models.Card{}).Where("user_id = ''").Count(&templates)
	if templates != 3 {
		t.Errorf("expected 3 templates, got %d", templates)
	}

	exp, err := catalogSvc.GetExpansion(ctx, "sv3pt5")
	if err != nil || exp == nil || exp.Name != "151" {
		t.Errorf("expansion not stored: %+v, %v", exp, err)
	}

	// Re-running is idempotent
	if _, err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("second SyncAll() error = %v", err)
	}
	db.Model(&models.Card{}).Where("user_id = ''").Count(&templates)
	if templates != 3 {
		t.Errorf("expected 3 templates after resync, got %d", templates)
	}
	if syncer.IsRunning() {
		t.Error("sync should not be running after it returns")
	}
}

func TestSyncKeepsUserRows(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	syncer := NewCatalogSyncService(fc, catalogSvc, nil, nil, 1)
	ctx := context.Background()

	if _, err := catalogSvc.SetCollected(ctx, "user-1", "sv1-200", true); err != nil {
		t.Fatalf("SetCollected() error = %v", err)
	}
	if _, err := syncer.SyncExpansion(ctx, "sv1"); err != nil {
		t.Fatalf("SyncExpansion() error = %v", err)
	}

	cards, err := catalogSvc.MergedCards(ctx, "user-1", "sv1", "")
	if err != nil {
		t.Fatalf("MergedCards() error = %v", err)
	}
	collected := 0
	for _, c := range cards {
		if c.IsCollected {
			collected++
		}
	}
	if collected != 1 {
		t.Errorf("expected the collected flag to survive a sync, got %d collected", collected)
	}
}

func TestSyncExpansionUnknown(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	syncer := NewCatalogSyncService(fc, catalogSvc, nil, nil, 1)

	if _, err := syncer.SyncExpansion(context.Background(), "sv99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	db := newTestDB(t)
	fc, catalogSvc := newSeededCatalog(t, db)
	syncer := NewCatalogSyncService(fc, catalogSvc, nil, nil, 1)

	if !syncer.begin() {
		t.Fatal("begin() should succeed on an idle service")
	}
	defer syncer.end()

	if _, err := syncer.SyncAll(context.Background()); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict while running, got %v", err)
	}
}
