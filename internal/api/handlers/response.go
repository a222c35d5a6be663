package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/services"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

func respondBadRequest(c *gin.Context, message string) {
	respondMessage(c, http.StatusBadRequest, message)
}

// respondError maps service errors to a status. Client errors carry their message;
// upstream and internal failures are logged and replaced with a generic one.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		respondMessage(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, services.ErrForbidden):
		respondMessage(c, http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrNotFound):
		respondMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		respondMessage(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrUpstream):
		log.Printf("API: %s %s upstream failure: %v", c.Request.Method, c.FullPath(), err)
		respondMessage(c, http.StatusBadGateway, "upstream provider unavailable")
	default:
		log.Printf("API: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		respondMessage(c, http.StatusInternalServerError, "internal server error")
	}
}
