package models

import (
	"strings"
	"time"
)

// CardType classifies which rarity subset a template card belongs to.
type CardType string

const (
	CardTypeIllustrationRare        CardType = "illustration_rare"
	CardTypeSpecialIllustrationRare CardType = "special_illustration_rare"
)

// Catalog rarity strings for the tracked subsets
const (
	RarityIllustrationRare        = "Illustration Rare"
	RaritySpecialIllustrationRare = "Special Illustration Rare"
)

// TrackedRarities returns the catalog rarities that are stored as template cards
func TrackedRarities() []string {
	return []string{RarityIllustrationRare, RaritySpecialIllustrationRare}
}

// CardTypeForRarity maps a catalog rarity to a CardType. Untracked rarities return "".
func CardTypeForRarity(rarity string) CardType {
	switch strings.ToLower(strings.TrimSpace(rarity)) {
	case "illustration rare":
		return CardTypeIllustrationRare
	case "special illustration rare":
		return CardTypeSpecialIllustrationRare
	default:
		return ""
	}
}

// RarityForCardType is the inverse of CardTypeForRarity.
func RarityForCardType(t CardType) string {
	switch t {
	case CardTypeIllustrationRare:
		return RarityIllustrationRare
	case CardTypeSpecialIllustrationRare:
		return RaritySpecialIllustrationRare
	default:
		return ""
	}
}

// IsValid reports whether t is one of the tracked subsets.
func (t CardType) IsValid() bool {
	return t == CardTypeIllustrationRare || t == CardTypeSpecialIllustrationRare
}

// Card is either a template (UserID == "") holding the catalog definition of a printing,
// or a user-scoped copy holding only that user's collected flag for the same ID.
type Card struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	UserID        string     `json:"userId,omitempty" gorm:"primaryKey;not null"`
	Name          string     `json:"name" gorm:"index"`
	ImageURL      string     `json:"imageUrl"`
	ImageURLLarge string     `json:"imageUrlLarge,omitempty"`
	Expansion     string     `json:"expansion" gorm:"index"`
	Number        string     `json:"number,omitempty"`
	Rarity        string     `json:"rarity,omitempty"`
	Type          CardType   `json:"type,omitempty" gorm:"index"`
	IsCollected   bool       `json:"isCollected"`
	DateCollected *time.Time `json:"dateCollected"`
	CreatedAt     time.Time  `json:"-"`
	UpdatedAt     time.Time  `json:"-"`
}

// IsTemplate reports whether this row is the catalog baseline.
func (c *Card) IsTemplate() bool {
	return c.UserID == ""
}

// CollectedUpdate is one entry of a bulk collected-flag update
type CollectedUpdate struct {
	CardID      string `json:"cardId" binding:"required"`
	IsCollected bool   `json:"isCollected"`
}

type BulkCollectedRequest struct {
	Updates []CollectedUpdate `json:"updates" binding:"required,min=1,dive"`
}

type SetCollectedRequest struct {
	IsCollected *bool `json:"isCollected" binding:"required"`
}
