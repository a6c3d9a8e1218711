package middleware

import (
	"net/http"
	"strings"

	"github.com/evently-app/evently-backend/config"
	"github.com/evently-app/evently-backend/internal/auth"
	"github.com/evently-app/evently-backend/internal/loginlog"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthGate authenticates a request in two steps and attaches the resulting
// identity to the gin context. Both steps fail closed with 401.
//
// Step 1 is structural: the bearer token must be a well-signed, unexpired
// JWT. Step 2 consults the login ledger: the claimed email must have at
// least one live (unexpired) entry. The ledger check is deliberately coarse;
// it matches by user, not by the exact presented token, answering "does this
// user still have any live session" cheaply. Logout revokes by appending a
// dead entry, and the purge eventually removes everything expired, so a
// fully logged-out or stale user is rejected here.
func AuthGate(cfg *config.Config, ledger loginlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		identity, ok := parseAccessToken(parts[1], cfg.JWTAccessSecret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		live, err := ledger.HasLiveSession(c.Request.Context(), identity.Email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session check failed"})
			return
		}
		if !live {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no live session"})
			return
		}

		c.Set("identity", identity)
		c.Next()
	}
}

func parseAccessToken(tokenStr, secret string) (auth.Identity, bool) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return auth.Identity{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Identity{}, false
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return auth.Identity{}, false
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return auth.Identity{}, false
	}

	name, _ := claims["name"].(string)
	provider, _ := claims["provider"].(string)

	return auth.Identity{
		UserID:   uint(userIDFloat),
		Email:    strings.ToLower(email),
		Name:     name,
		Provider: provider,
	}, true
}
