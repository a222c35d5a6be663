package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CookieName = "auth_token"

	userIDKey = "auth.userID"
	claimsKey = "auth.claims"
)

// Middleware resolves the session from the auth cookie or an Authorization bearer
// header. Requests without a valid session continue anonymously; RequireUser rejects them.
func (m *TokenManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie(CookieName); err == nil {
				tokenString = cookie
			}
		}

		if tokenString != "" {
			if claims, err := m.Parse(tokenString); err == nil {
				c.Set(userIDKey, claims.Subject)
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserID returns the resolved user id, or "" for anonymous requests
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// CurrentClaims returns the session claims, or nil for anonymous requests
func CurrentClaims(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// RequireUser aborts with 401 unless a user was resolved
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the user is one of adminIDs
func RequireAdmin(adminIDs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		if !slices.Contains(adminIDs, userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "access denied"})
			return
		}
		c.Next()
	}
}
