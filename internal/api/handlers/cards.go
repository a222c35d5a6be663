package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

type CardHandler struct {
	catalog *services.CatalogService
}

func NewCardHandler(catalog *services.CatalogService) *CardHandler {
	return &CardHandler{catalog: catalog}
}

// ListExpansions returns every synced expansion
func (h *CardHandler) ListExpansions(c *gin.Context) {
	expansions, err := h.catalog.ListExpansions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, expansions)
}

// GetExpansionCards returns the merged view of one expansion.
// ?type= selects the subset, ?source=catalog reads through to the catalog provider.
func (h *CardHandler) GetExpansionCards(c *gin.Context) {
	userID := auth.UserID(c)
	slug := c.Param("slug")
	cardType := models.CardType(c.Query("type"))

	var (
		cards []models.Card
		err   error
	)
	switch c.Query("source") {
	case "", "local":
		cards, err = h.catalog.MergedCards(c.Request.Context(), userID, slug, cardType)
	case "catalog":
		cards, err = h.catalog.LiveMergedCards(c.Request.Context(), userID, slug, cardType)
	default:
		respondBadRequest(c, "source must be 'local' or 'catalog'")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, cards)
}

// SearchCards searches template cards by name across expansions
func (h *CardHandler) SearchCards(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cards, err := h.catalog.SearchCards(c.Request.Context(), auth.UserID(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, cards)
}

// SetCollected toggles the collected flag of one card
func (h *CardHandler) SetCollected(c *gin.Context) {
	var req models.SetCollectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "isCollected is required")
		return
	}

	card, err := h.catalog.SetCollected(c.Request.Context(), auth.UserID(c), c.Param("id"), *req.IsCollected)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, card)
}

// BulkSetCollected applies several collected flag updates in one transaction
func (h *CardHandler) BulkSetCollected(c *gin.Context) {
	var req models.BulkCollectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "updates must be a non-empty list of {cardId, isCollected}")
		return
	}

	cards, err := h.catalog.BulkSetCollected(c.Request.Context(), auth.UserID(c), req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": len(cards), "cards": cards})
}
