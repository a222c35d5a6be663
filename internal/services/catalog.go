package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
	templateOrder      = "CAST(number AS INTEGER), number, id"
)

// CatalogService serves template cards merged with per-user collection state
type CatalogService struct {
	db             *gorm.DB
	catalog        CardCatalog
	expansionCache *lru.Cache[string, models.Expansion]
	now            func() time.Time
}

func NewCatalogService(db *gorm.DB, catalog CardCatalog) *CatalogService {
	cache, _ := lru.New[string, models.Expansion](128)
	return &CatalogService{
		db:             db,
		catalog:        catalog,
		expansionCache: cache,
		now:            time.Now,
	}
}

// ListExpansions returns all known expansions, newest first
func (s *CatalogService) ListExpansions(ctx context.Context) ([]models.Expansion, error) {
	var expansions []models.Expansion
	if err := s.db.WithContext(ctx).Order("release_date DESC, slug").Find(&expansions).Error; err != nil {
		return nil, fmt.Errorf("list expansions: %w", err)
	}
	for _, e := range expansions {
		s.expansionCache.Add(e.Slug, e)
	}
	return expansions, nil
}

// GetExpansion looks up an expansion by slug. Unknown slugs return nil without error.
func (s *CatalogService) GetExpansion(ctx context.Context, slug string) (*models.Expansion, error) {
	slug = ExpansionSlug(slug)
	if e, ok := s.expansionCache.Get(slug); ok {
		return &e, nil
	}

	var e models.Expansion
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expansion %s: %w", slug, err)
	}
	s.expansionCache.Add(slug, e)
	return &e, nil
}

// InvalidateExpansions drops cached expansion lookups after a sync
func (s *CatalogService) InvalidateExpansions() {
	s.expansionCache.Purge()
}

// MergedCards returns the template cards of one subset in an expansion, each annotated
// with the user's collected state. It never writes.
func (s *CatalogService) MergedCards(ctx context.Context, userID, slug string, cardType models.CardType) ([]models.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	slug, err := parseSlug(slug)
	if err != nil {
		return nil, err
	}
	cardType, err = resolveCardType(cardType)
	if err != nil {
		return nil, err
	}

	var templates []models.Card
	err = s.db.WithContext(ctx).
		Where("user_id = '' AND expansion = ? AND type = ?", slug, cardType).
		Order(templateOrder).
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("load templates for %s: %w", slug, err)
	}

	return overlayUserCards(ctx, s.db, userID, templates)
}

// LiveMergedCards fetches the expansion from the catalog provider instead of the local
// templates, refreshes the stored templates, and merges the user's state.
func (s *CatalogService) LiveMergedCards(ctx context.Context, userID, slug string, cardType models.CardType) ([]models.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	slug, err := parseSlug(slug)
	if err != nil {
		return nil, err
	}
	cardType, err = resolveCardType(cardType)
	if err != nil {
		return nil, err
	}

	setID := slug
	if exp, err := s.GetExpansion(ctx, slug); err != nil {
		return nil, err
	} else if exp != nil {
		setID = exp.ID
	}

	fetched, err := s.catalog.GetSetCards(ctx, setID, models.RarityForCardType(cardType))
	if err != nil {
		return nil, err
	}

	templates := make([]models.Card, 0, len(fetched))
	for _, c := range fetched {
		if c.Type == cardType {
			templates = append(templates, c)
		}
	}
	if _, err := s.UpsertTemplates(ctx, templates); err != nil {
		return nil, err
	}

	return overlayUserCards(ctx, s.db, userID, templates)
}

// SetCollected marks one card collected or not for the user. The user row is created
// on first toggle; dateCollected is set to now when collected and cleared otherwise.
func (s *CatalogService) SetCollected(ctx context.Context, userID, cardID string, collected bool) (*models.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var result *models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := setCollected(tx, userID, cardID, collected, s.now())
		result = card
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkSetCollected applies several updates atomically. An unknown card id aborts the batch.
func (s *CatalogService) BulkSetCollected(ctx context.Context, userID string, updates []models.CollectedUpdate) ([]models.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no updates given", ErrInvalidInput)
	}

	now := s.now()
	results := make([]models.Card, 0, len(updates))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			card, err := setCollected(tx, userID, u.CardID, u.IsCollected, now)
			if err != nil {
				return err
			}
			results = append(results, *card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func setCollected(tx *gorm.DB, userID, cardID string, collected bool, now time.Time) (*models.Card, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}

	var template models.Card
	err := tx.Where("id = ? AND user_id = ''", cardID).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: card %s", ErrNotFound, cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("load card %s: %w", cardID, err)
	}

	row := models.Card{ID: cardID, UserID: userID, IsCollected: collected}
	if collected {
		ts := now.UTC()
		row.DateCollected = &ts
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_collected", "date_collected", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("save collected state for %s: %w", cardID, err)
	}

	state := "uncollected"
	if collected {
		state = "collected"
	}
	metrics.CollectionTogglesTotal.WithLabelValues(state).Inc()

	template.IsCollected = row.IsCollected
	template.DateCollected = row.DateCollected
	return &template, nil
}

// SearchCards finds template cards by name across all expansions, leaving out cards
// the user already collected or wishlisted.
func (s *CatalogService) SearchCards(ctx context.Context, userID, query string, limit int) ([]models.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	db := s.db.WithContext(ctx)
	collected := db.Model(&models.Card{}).Select("id").Where("user_id = ? AND is_collected = ?", userID, true)
	wishlisted := db.Model(&models.WishlistItem{}).Select("card_id").Where("user_id = ?", userID)

	var cards []models.Card
	err := db.
		Where("user_id = '' AND LOWER(name) LIKE ? ESCAPE '\\'", pattern).
		Where("id NOT IN (?)", collected).
		Where("id NOT IN (?)", wishlisted).
		Order("name, expansion, id").
		Limit(limit).
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("search cards: %w", err)
	}
	return cards, nil
}

// UpsertTemplates inserts or refreshes template cards. User rows are never touched.
func (s *CatalogService) UpsertTemplates(ctx context.Context, cards []models.Card) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	for i := range cards {
		cards[i].UserID = ""
		cards[i].IsCollected = false
		cards[i].DateCollected = nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "image_url", "image_url_large", "expansion", "number", "rarity", "type", "updated_at",
		}),
	}).CreateInBatches(&cards, 100).Error
	if err != nil {
		return 0, fmt.Errorf("upsert templates: %w", err)
	}
	return len(cards), nil
}

// UpsertExpansions inserts or refreshes expansion rows
func (s *CatalogService) UpsertExpansions(ctx context.Context, expansions []models.Expansion) error {
	if len(expansions) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "slug", "series", "logo", "symbol", "release_date", "total", "updated_at",
		}),
	}).Create(&expansions).Error
	if err != nil {
		return fmt.Errorf("upsert expansions: %w", err)
	}
	s.InvalidateExpansions()
	return nil
}

// CountTemplates returns the number of template cards stored
func (s *CatalogService) CountTemplates(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).Where("user_id = ''").Count(&n).Error
	return n, err
}

// overlayUserCards copies the user's collected flags onto templates, preserving order
func overlayUserCards(ctx context.Context, db *gorm.DB, userID string, templates []models.Card) ([]models.Card, error) {
	merged := make([]models.Card, len(templates))
	copy(merged, templates)
	if len(merged) == 0 {
		return merged, nil
	}

	ids := make([]string, len(merged))
	for i, c := range merged {
		ids[i] = c.ID
	}

	var userRows []models.Card
	if err := db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&userRows).Error; err != nil {
		return nil, fmt.Errorf("load user cards: %w", err)
	}
	byID := make(map[string]models.Card, len(userRows))
	for _, r := range userRows {
		byID[r.ID] = r
	}

	for i := range merged {
		merged[i].UserID = ""
		merged[i].IsCollected = false
		merged[i].DateCollected = nil
		if r, ok := byID[merged[i].ID]; ok {
			merged[i].IsCollected = r.IsCollected
			merged[i].DateCollected = r.DateCollected
		}
	}
	return merged, nil
}

func resolveCardType(t models.CardType) (models.CardType, error) {
	if t == "" {
		return models.CardTypeIllustrationRare, nil
	}
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown card type %q", ErrInvalidInput, t)
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
