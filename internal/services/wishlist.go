package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

type WishlistService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewWishlistService(db *gorm.DB) *WishlistService {
	return &WishlistService{db: db, now: time.Now}
}

// Upsert adds card to the user's wishlist, or updates the price if the card is
// already there. created reports which of the two happened.
func (s *WishlistService) Upsert(ctx context.Context, userID string, card models.WishlistCard, price float64) (*models.WishlistItem, bool, error) {
	if userID == "" {
		return nil, false, ErrUnauthenticated
	}
	card.ID = strings.TrimSpace(card.ID)
	if card.ID == "" {
		return nil, false, fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, false, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidInput)
	}

	db := s.db.WithContext(ctx)

	existing, err := s.find(db, userID, card.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		item, err := s.updatePrice(db, existing, price)
		return item, false, err
	}

	item := &models.WishlistItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Card:      card,
		Price:     price,
		DateAdded: s.now().UTC(),
	}
	err = db.Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost an insert race with a concurrent add of the same card
		existing, err = s.find(db, userID, card.ID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("%w: wishlist item for %s", ErrConflict, card.ID)
		}
		item, err := s.updatePrice(db, existing, price)
		return item, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("add wishlist item: %w", err)
	}

	metrics.WishlistUpsertsTotal.WithLabelValues("created").Inc()
	return item, true, nil
}

func (s *WishlistService) find(db *gorm.DB, userID, cardID string) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := db.Where("user_id = ? AND card_id = ?", userID, cardID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wishlist item: %w", err)
	}
	return &item, nil
}

func (s *WishlistService) updatePrice(db *gorm.DB, item *models.WishlistItem, price float64) (*models.WishlistItem, error) {
	if err := db.Model(item).Update("price", price).Error; err != nil {
		return nil, fmt.Errorf("update wishlist price: %w", err)
	}
	item.Price = price
	metrics.WishlistUpsertsTotal.WithLabelValues("updated").Inc()
	return item, nil
}

// List returns the user's wishlist, most recently added first
func (s *WishlistService) List(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	items := []models.WishlistItem{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("date_added DESC, id").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return items, nil
}

// Remove deletes one item. Items owned by someone else are reported as not found.
func (s *WishlistService) Remove(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return fmt.Errorf("remove wishlist item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wishlist item %s", ErrNotFound, itemID)
	}
	return nil
}

// Clear removes every item on the user's wishlist and returns how many were removed
func (s *WishlistService) Clear(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUnauthenticated
	}
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear wishlist: %w", res.Error)
	}
	return res.RowsAffected, nil
}
