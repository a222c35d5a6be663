package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
)

// GetMe returns the current user's id and profile details from the session
func GetMe(c *gin.Context) {
	data := gin.H{"id": auth.UserID(c)}
	if claims := auth.CurrentClaims(c); claims != nil {
		data["email"] = claims.Email
		data["name"] = claims.Name
	}
	respondOK(c, data)
}
