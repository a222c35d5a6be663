package models

import "time"

// WishlistCard is the denormalized card snapshot stored on a wishlist item
type WishlistCard struct {
	ID        string `json:"id" gorm:"column:card_id;not null;uniqueIndex:idx_wishlist_user_card" binding:"required"`
	Name      string `json:"name" gorm:"column:card_name"`
	ImageURL  string `json:"imageUrl" gorm:"column:card_image_url"`
	Expansion string `json:"expansion" gorm:"column:card_expansion"`
}

type WishlistItem struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"userId" gorm:"not null;index;uniqueIndex:idx_wishlist_user_card"`
	Card      WishlistCard `json:"card" gorm:"embedded"`
	Price     float64      `json:"price"`
	DateAdded time.Time    `json:"dateAdded"`
}

type AddWishlistRequest struct {
	Card  WishlistCard `json:"card"`
	Price float64      `json:"price" binding:"gte=0"`
}
