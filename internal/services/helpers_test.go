package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/codyseavey/ir-tracker/internal/database"
	"github.com/codyseavey/ir-tracker/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("file::memory:", false)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return db
}

// fakeCatalog serves fixed expansions and cards and counts card fetches
type fakeCatalog struct {
	mu       sync.Mutex
	sets     []models.Expansion
	cards    map[string][]models.Card // keyed by set id
	err      error
	setCalls int

	// when set, GetSetCards waits for it to close
	block chan struct{}
}

func (f *fakeCatalog) GetSets(_ context.Context, _ ...string) ([]models.Expansion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Expansion(nil), f.sets...), nil
}

func (f *fakeCatalog) GetSet(_ context.Context, id string) (*models.Expansion, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.sets {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetSetCards(ctx context.Context, setID string, rarities ...string) ([]models.Card, error) {
	f.mu.Lock()
	f.setCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Card
	for _, c := range f.cards[setID] {
		for _, r := range rarities {
			if c.Rarity == r {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) setBlock(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = ch
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

func irCard(id, name, expansion, number string) models.Card {
	return models.Card{
		ID:        id,
		Name:      name,
		ImageURL:  "https://images.example/" + id + ".png",
		Expansion: expansion,
		Number:    number,
		Rarity:    models.RarityIllustrationRare,
		Type:      models.CardTypeIllustrationRare,
	}
}

func sirCard(id, name, expansion, number string) models.Card {
	c := irCard(id, name, expansion, number)
	c.Rarity = models.RaritySpecialIllustrationRare
	c.Type = models.CardTypeSpecialIllustrationRare
	return c
}

// newSeededCatalog returns a catalog with sv1 (3 IR + 1 SIR) and sv2 (1 IR) and stores
// the same data as templates.
func newSeededCatalog(t *testing.T, db *gorm.DB) (*fakeCatalog, *CatalogService) {
	t.Helper()
	fc := &fakeCatalog{
		sets: []models.Expansion{
			{ID: "sv1", Name: "Scarlet & Violet", Slug: "sv1", Series: "Scarlet & Violet", ReleaseDate: "2023/03/31"},
			{ID: "sv2", Name: "Paldea Evolved", Slug: "sv2", Series: "Scarlet & Violet", ReleaseDate: "2023/06/09"},
		},
		cards: map[string][]models.Card{
			"sv1": {
				irCard("sv1-199", "Spidops", "sv1", "199"),
				irCard("sv1-200", "Pikachu", "sv1", "200"),
				irCard("sv1-201", "Miraidon", "sv1", "201"),
				sirCard("sv1-245", "Miraidon ex", "sv1", "245"),
			},
			"sv2": {
				irCard("sv2-193", "Magikarp", "sv2", "193"),
			},
		},
	}

	svc := NewCatalogService(db, fc)
	ctx := context.Background()
	if err := svc.UpsertExpansions(ctx, fc.sets); err != nil {
		t.Fatalf("seed expansions: %v", err)
	}
	for _, id := range []string{"sv1", "sv2"} {
		cards := append([]models.Card(nil), fc.cards[id]...)
		if _, err := svc.UpsertTemplates(ctx, cards); err != nil {
			t.Fatalf("seed templates: %v", err)
		}
	}
	return fc, svc
}
