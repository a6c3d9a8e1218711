package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	dev     bool
}

func NewHandler(service Service, dev bool) *Handler {
	return &Handler{service: service, dev: dev}
}

// Register handles POST /auth/register
// @Summary Register a local account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration payload"
// @Success 201 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	if err := h.service.Register(c.Request.Context(), req); err != nil {
		h.fail(c, err, "failed to register")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "account created"})
}

// Login handles POST /auth/login
// @Summary Login with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} gin.H
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req, c.Request.UserAgent(), clientIP(c))
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.fail(c, err, "failed to login")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// OAuthStart handles GET /auth/oauth/:provider
// @Summary Begin an OAuth login
// @Description Returns the provider authorization URL to redirect the user to.
// @Tags Auth
// @Produce json
// @Param provider path string true "Provider (google or github)"
// @Success 200 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /api/v1/auth/oauth/{provider} [get]
func (h *Handler) OAuthStart(c *gin.Context) {
	authURL, err := h.service.OAuthStart(c.Request.Context(), c.Param("provider"))
	if err != nil {
		h.fail(c, err, "failed to start oauth flow")
		return
	}

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// OAuthCallback handles GET /auth/oauth/:provider/callback
// @Summary Complete an OAuth login
// @Tags Auth
// @Produce json
// @Param provider path string true "Provider (google or github)"
// @Param code query string true "Authorization code"
// @Param state query string true "Opaque state from OAuthStart"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} gin.H
// @Router /api/v1/auth/oauth/{provider}/callback [get]
func (h *Handler) OAuthCallback(c *gin.Context) {
	resp, err := h.service.OAuthCallback(
		c.Request.Context(),
		c.Param("provider"),
		c.Query("code"),
		c.Query("state"),
		c.Request.UserAgent(),
		clientIP(c),
	)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "oauth login failed"})
			return
		}
		h.fail(c, err, "failed to complete oauth flow")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh (behind the auth gate)
// @Summary Refresh the access token
// @Tags Auth
// @Produce json
// @Success 200 {object} TokenResponse
// @Failure 401 {object} gin.H
// @Router /api/v1/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), identity, c.Request.UserAgent(), clientIP(c))
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		h.fail(c, err, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /auth/logout (behind the auth gate)
// @Summary Logout
// @Description Appends a logout entry to the ledger, revoking the session.
// @Tags Auth
// @Produce json
// @Success 200 {object} gin.H
// @Failure 401 {object} gin.H
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.service.Logout(c.Request.Context(), identity, bearerToken(c), c.Request.UserAgent(), clientIP(c)); err != nil {
		h.fail(c, err, "failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me handles GET /auth/me (behind the auth gate)
// @Summary Current identity
// @Tags Auth
// @Produce json
// @Success 200 {object} Identity
// @Failure 401 {object} gin.H
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, identity)
}

// IdentityFromContext retrieves the authenticated identity the gate stored.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	raw, exists := c.Get("identity")
	if !exists {
		return Identity{}, false
	}
	identity, ok := raw.(Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func clientIP(c *gin.Context) string {
	if ip, exists := c.Get("client_ip"); exists {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
		return
	}
	if h.dev {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
