package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

const (
	userKey   = "auth.user"
	claimsKey = "auth.claims"
	tokenKey  = "auth.token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *Claims, error)
}

// Middleware rejects requests without a valid access token. Browsers cannot
// set headers on a WebSocket upgrade, so the access_token query parameter is
// accepted as well.
func Middleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized", "missing access token")
			return
		}

		user, claims, err := a.Authenticate(c.Request.Context(), token)
		if errors.Is(err, ErrUnauthorized) {
			abort(c, http.StatusUnauthorized, "Unauthorized", "invalid or expired access token")
			return
		}
		if err != nil {
			abort(c, http.StatusInternalServerError, "Unknown", "failed to authenticate")
			return
		}

		c.Set(userKey, user)
		c.Set(claimsKey, claims)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

func abort(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

func UserFromContext(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func ClaimsFromContext(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// TokenFromContext returns the raw token the request authenticated with.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(tokenKey)
}
