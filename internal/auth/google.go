package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookieName        = "oauthstate"
	googleUserInfoURL      = "https://www.googleapis.com/oauth2/v2/userinfo"
	userInfoRequestTimeout = 10 * time.Second
)

// GoogleUser is the subset of the userinfo response we keep
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// GoogleHandler runs the OAuth login flow and issues session cookies
type GoogleHandler struct {
	oauthConfig  *oauth2.Config
	tokens       *TokenManager
	frontendURL  string
	isProduction bool
	userInfoURL  string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	FrontendURL  string
	IsProduction bool
}

func NewGoogleHandler(cfg GoogleConfig, tokens *TokenManager) *GoogleHandler {
	return &GoogleHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		tokens:       tokens,
		frontendURL:  cfg.FrontendURL,
		isProduction: cfg.IsProduction,
		userInfoURL:  googleUserInfoURL,
	}
}

// Configured reports whether Google credentials were provided
func (h *GoogleHandler) Configured() bool {
	return h.oauthConfig.ClientID != "" && h.oauthConfig.ClientSecret != ""
}

// Login redirects to Google's consent screen
func (h *GoogleHandler) Login(c *gin.Context) {
	if !h.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "google login is not configured"})
		return
	}
	state, err := h.setStateCookie(c)
	if err != nil {
		log.Printf("Auth: failed to create oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.oauthConfig.AuthCodeURL(state))
}

// Callback completes the code exchange and sets the session cookie
func (h *GoogleHandler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || c.Query("state") != state {
		log.Printf("Auth: oauth state mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid oauth state"})
		return
	}
	h.clearCookie(c, stateCookieName)

	ctx := c.Request.Context()
	token, err := h.oauthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		log.Printf("Auth: code exchange failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "login failed"})
		return
	}

	user, err := h.fetchUser(ctx, token)
	if err != nil {
		log.Printf("Auth: failed getting user info: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "login failed"})
		return
	}

	signed, expires, err := h.tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		log.Printf("Auth: failed signing session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}

	h.setCookie(c, CookieName, signed, expires)
	log.Printf("Auth: login successful for user %s", user.ID)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL)
}

// Logout clears the session cookie
func (h *GoogleHandler) Logout(c *gin.Context) {
	h.clearCookie(c, CookieName)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"loggedOut": true}})
}

func (h *GoogleHandler) fetchUser(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	ctx, cancel := context.WithTimeout(ctx, userInfoRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("userinfo has no id")
	}
	return &user, nil
}

func (h *GoogleHandler) setStateCookie(c *gin.Context) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	h.setCookie(c, stateCookieName, state, time.Now().Add(20*time.Minute))
	return state, nil
}

func (h *GoogleHandler) setCookie(c *gin.Context, name, value string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *GoogleHandler) clearCookie(c *gin.Context, name string) {
	h.setCookie(c, name, "", time.Now().Add(-time.Hour))
}
