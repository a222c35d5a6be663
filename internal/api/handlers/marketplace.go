package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

// QuotaReporter exposes the marketplace client's request budget
type QuotaReporter interface {
	Status() services.QuotaStatus
}

type MarketplaceHandler struct {
	marketplace *services.MarketplaceService
	quota       QuotaReporter
}

func NewMarketplaceHandler(marketplace *services.MarketplaceService, quota QuotaReporter) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplace: marketplace,
		quota:       quota,
	}
}

func bindMarketplaceCard(c *gin.Context) (models.Card, bool) {
	var req models.MarketplaceCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name and expansion are required")
		return models.Card{}, false
	}
	if req.Type != "" && !req.Type.IsValid() {
		respondBadRequest(c, "unknown card type")
		return models.Card{}, false
	}
	return models.Card{
		ID:        req.ID,
		Name:      req.Name,
		Expansion: req.Expansion,
		Type:      req.Type,
	}, true
}

// Search returns every acceptable listing for the card, cheapest first
func (h *MarketplaceHandler) Search(c *gin.Context) {
	card, ok := bindMarketplaceCard(c)
	if !ok {
		return
	}
	listings, err := h.marketplace.MatchListings(c.Request.Context(), card)
	if err != nil {
		respondError(c, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	respondOK(c, listings)
}

// BestPrice returns the cheapest acceptable listing, or null when nothing qualifies
func (h *MarketplaceHandler) BestPrice(c *gin.Context) {
	card, ok := bindMarketplaceCard(c)
	if !ok {
		return
	}
	best, err := h.marketplace.FindBestPrice(c.Request.Context(), card)
	if err != nil {
		respondError(c, err)
		return
	}
	if best == nil {
		respondOK(c, gin.H{"found": false, "listing": nil})
		return
	}
	respondOK(c, gin.H{"found": true, "listing": best, "price": best.Price()})
}

// GetStatus returns the marketplace request quota
func (h *MarketplaceHandler) GetStatus(c *gin.Context) {
	respondOK(c, h.quota.Status())
}
