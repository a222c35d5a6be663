package models

import "time"

// Expansion is a catalog set. Slug is the lowercased catalog set id and is what
// Card.Expansion refers to.
type Expansion struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;not null"`
	Series      string    `json:"series,omitempty"`
	Logo        string    `json:"logo,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Total       int       `json:"total,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}
