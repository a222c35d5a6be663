package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

type BinderHandler struct {
	binders *services.BinderService
}

func NewBinderHandler(binders *services.BinderService) *BinderHandler {
	return &BinderHandler{binders: binders}
}

func (h *BinderHandler) ListBinders(c *gin.Context) {
	binders, err := h.binders.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, binders)
}

func (h *BinderHandler) GetBinder(c *gin.Context) {
	binder, err := h.binders.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, binder)
}

func (h *BinderHandler) CreateBinder(c *gin.Context) {
	var req models.CreateBinderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name and slotCount are required")
		return
	}

	binder, err := h.binders.Create(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, binder)
}

func (h *BinderHandler) DeleteBinder(c *gin.Context) {
	if err := h.binders.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func (h *BinderHandler) ListSlots(c *gin.Context) {
	slots, err := h.binders.ListSlots(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, slots)
}

// PlaceCard puts a card into a slot, replacing any card already there
func (h *BinderHandler) PlaceCard(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req models.PlaceCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "cardId is required")
		return
	}

	placed, err := h.binders.PlaceCard(c.Request.Context(), auth.UserID(c), c.Param("id"), slot, req.CardID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, placed)
}

func (h *BinderHandler) RemoveCard(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	if err := h.binders.RemoveCard(c.Request.Context(), auth.UserID(c), c.Param("id"), slot); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func slotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || slot < 1 {
		respondMessage(c, http.StatusBadRequest, "slot must be a positive integer")
		return 0, false
	}
	return slot, true
}
