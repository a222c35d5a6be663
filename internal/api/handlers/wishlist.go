package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

type WishlistHandler struct {
	wishlist *services.WishlistService
}

func NewWishlistHandler(wishlist *services.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist}
}

func (h *WishlistHandler) ListWishlist(c *gin.Context) {
	items, err := h.wishlist.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, items)
}

// AddToWishlist adds a card, or updates its price when it is already wishlisted
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	var req models.AddWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "card.id is required and price must be a non-negative number")
		return
	}

	item, created, err := h.wishlist.Upsert(c.Request.Context(), auth.UserID(c), req.Card, req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, Envelope{Success: true, Data: item})
}

func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	if err := h.wishlist.Remove(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func (h *WishlistHandler) ClearWishlist(c *gin.Context) {
	n, err := h.wishlist.Clear(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": n})
}
