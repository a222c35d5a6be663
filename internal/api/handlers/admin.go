package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/services"
)

type AdminHandler struct {
	sync *services.CatalogSyncService
}

func NewAdminHandler(sync *services.CatalogSyncService) *AdminHandler {
	return &AdminHandler{sync: sync}
}

type syncRequest struct {
	Expansion string `json:"expansion"`
}

// SyncCatalog pulls expansions and template cards from the catalog provider.
// With {"expansion": "sv1"} only that expansion is synced.
func (h *AdminHandler) SyncCatalog(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	var (
		result *services.SyncResult
		err    error
	)
	if req.Expansion != "" {
		result, err = h.sync.SyncExpansion(c.Request.Context(), req.Expansion)
	} else {
		result, err = h.sync.SyncAll(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// GetSyncStatus reports whether a sync is in progress
func (h *AdminHandler) GetSyncStatus(c *gin.Context) {
	respondOK(c, gin.H{"running": h.sync.IsRunning()})
}
