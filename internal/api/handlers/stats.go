package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/services"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats returns per-expansion completion for the current user
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetExpansionStats(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// RefreshStats recomputes catalog totals, then returns the user's stats
func (h *StatsHandler) RefreshStats(c *gin.Context) {
	if _, err := h.stats.RefreshTotals(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.GetStats(c)
}
