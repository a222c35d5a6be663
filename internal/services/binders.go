package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/ir-tracker/internal/models"
)

const maxBinderNameLength = 100

type BinderService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBinderService(db *gorm.DB) *BinderService {
	return &BinderService{db: db, now: time.Now}
}

// List returns the user's binders with the number of filled slots
func (s *BinderService) List(ctx context.Context, userID string) ([]models.Binder, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	binders := []models.Binder{}
	err := s.db.WithContext(ctx).
		Model(&models.Binder{}).
		Select("binders.*, (SELECT COUNT(*) FROM binder_slots WHERE binder_slots.binder_id = binders.id) AS filled_slots").
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&binders).Error
	if err != nil {
		return nil, fmt.Errorf("list binders: %w", err)
	}
	return binders, nil
}

// Get loads a binder and checks that userID owns it
func (s *BinderService) Get(ctx context.Context, userID, binderID string) (*models.Binder, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(binderID); err != nil {
		return nil, fmt.Errorf("%w: malformed binder id", ErrInvalidInput)
	}
	return s.owned(s.db.WithContext(ctx), userID, binderID)
}

func (s *BinderService) owned(db *gorm.DB, userID, binderID string) (*models.Binder, error) {
	var b models.Binder
	err := db.Where("id = ?", binderID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: binder %s", ErrNotFound, binderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load binder: %w", err)
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return &b, nil
}

func (s *BinderService) Create(ctx context.Context, userID string, req models.CreateBinderRequest) (*models.Binder, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > maxBinderNameLength {
		return nil, fmt.Errorf("%w: name is longer than %d characters", ErrInvalidInput, maxBinderNameLength)
	}
	if !models.IsValidSlotCount(req.SlotCount) {
		return nil, fmt.Errorf("%w: slotCount must be one of %v", ErrInvalidInput, models.BinderSlotCounts)
	}

	b := &models.Binder{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     strings.TrimSpace(req.Color),
		SlotCount: req.SlotCount,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: binder %q", ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create binder: %w", err)
	}
	return b, nil
}

// Delete removes a binder together with its slots
func (s *BinderService) Delete(ctx context.Context, userID, binderID string) error {
	if _, err := s.Get(ctx, userID, binderID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("binder_id = ?", binderID).Delete(&models.BinderSlot{}).Error; err != nil {
			return fmt.Errorf("delete binder slots: %w", err)
		}
		if err := tx.Where("id = ? AND user_id = ?", binderID, userID).Delete(&models.Binder{}).Error; err != nil {
			return fmt.Errorf("delete binder: %w", err)
		}
		return nil
	})
}

// ListSlots returns the filled slots of a binder in slot order, each with its card
func (s *BinderService) ListSlots(ctx context.Context, userID, binderID string) ([]models.BinderSlot, error) {
	if _, err := s.Get(ctx, userID, binderID); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	slots := []models.BinderSlot{}
	if err := db.Where("binder_id = ?", binderID).Order("slot_number").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list binder slots: %w", err)
	}
	if len(slots) == 0 {
		return slots, nil
	}

	ids := make([]string, 0, len(slots))
	for _, sl := range slots {
		ids = append(ids, sl.CardID)
	}
	var templates []models.Card
	if err := db.Where("user_id = '' AND id IN ?", ids).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("load slot cards: %w", err)
	}
	merged, err := overlayUserCards(ctx, s.db, userID, templates)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Card, len(merged))
	for _, c := range merged {
		byID[c.ID] = c
	}
	for i := range slots {
		if c, ok := byID[slots[i].CardID]; ok {
			slots[i].Card = &c
		}
	}
	return slots, nil
}

// PlaceCard puts cardID into slotNumber, replacing whatever card was there
func (s *BinderService) PlaceCard(ctx context.Context, userID, binderID string, slotNumber int, cardID string) (*models.BinderSlot, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}
	binder, err := s.Get(ctx, userID, binderID)
	if err != nil {
		return nil, err
	}
	if slotNumber < 1 || slotNumber > binder.SlotCount {
		return nil, fmt.Errorf("%w: slot must be between 1 and %d", ErrInvalidInput, binder.SlotCount)
	}

	var slot models.BinderSlot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.Card
		err := tx.Where("id = ? AND user_id = ''", cardID).First(&card).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: card %s", ErrNotFound, cardID)
		}
		if err != nil {
			return fmt.Errorf("load card: %w", err)
		}

		err = tx.Where("binder_id = ? AND slot_number = ?", binderID, slotNumber).First(&slot).Error
		switch {
		case err == nil:
			slot.CardID = cardID
			slot.AddedAt = s.now().UTC()
			if err := tx.Save(&slot).Error; err != nil {
				return fmt.Errorf("update slot: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			slot = models.BinderSlot{
				BinderID:   binderID,
				SlotNumber: slotNumber,
				CardID:     cardID,
				UserID:     userID,
				AddedAt:    s.now().UTC(),
			}
			if err := tx.Create(&slot).Error; err != nil {
				return fmt.Errorf("create slot: %w", err)
			}
		default:
			return fmt.Errorf("load slot: %w", err)
		}
		slot.Card = &card
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// RemoveCard empties one slot
func (s *BinderService) RemoveCard(ctx context.Context, userID, binderID string, slotNumber int) error {
	if _, err := s.Get(ctx, userID, binderID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("binder_id = ? AND slot_number = ?", binderID, slotNumber).Delete(&models.BinderSlot{})
	if res.Error != nil {
		return fmt.Errorf("remove slot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, slotNumber)
	}
	return nil
}
