package models

import "time"

// Allowed binder capacities
var BinderSlotCounts = []int{180, 360, 540, 720}

// IsValidSlotCount reports whether n is one of BinderSlotCounts
func IsValidSlotCount(n int) bool {
	for _, c := range BinderSlotCounts {
		if c == n {
			return true
		}
	}
	return false
}

type Binder struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;uniqueIndex:idx_binder_user_name"`
	Color     string    `json:"color"`
	SlotCount int       `json:"slotCount" gorm:"not null"`
	UserID    string    `json:"userId" gorm:"not null;index;uniqueIndex:idx_binder_user_name"`
	CreatedAt time.Time `json:"createdAt"`
	// Populated on list responses
	FilledSlots int64 `json:"filledSlots" gorm:"->;-:migration"`
}

// BinderSlot places one card into one numbered pocket of a binder.
// The same card may appear in several slots.
type BinderSlot struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BinderID   string    `json:"binderId" gorm:"not null;uniqueIndex:idx_slot_binder_number"`
	SlotNumber int       `json:"slotNumber" gorm:"not null;uniqueIndex:idx_slot_binder_number"`
	CardID     string    `json:"cardId" gorm:"not null;index"`
	UserID     string    `json:"userId" gorm:"not null;index"`
	AddedAt    time.Time `json:"addedAt"`
	Card       *Card     `json:"card,omitempty" gorm:"-"`
}

type CreateBinderRequest struct {
	Name      string `json:"name" binding:"required"`
	Color     string `json:"color"`
	SlotCount int    `json:"slotCount" binding:"required"`
}

type PlaceCardRequest struct {
	CardID string `json:"cardId" binding:"required"`
}
