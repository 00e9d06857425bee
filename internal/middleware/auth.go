package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/auth"
	"chat-core/internal/models"
)

const principalKey = "principal"

// TokenVerifier resolves a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// AuthMiddleware validates the bearer token and stores the principal on the
// gin context.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, principal)
		c.Set("userID", principal.ID)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := val.(models.Principal)
	return p, ok
}

// SetPrincipal stores p the way AuthMiddleware does. Handler tests use it to
// skip token verification.
func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
	c.Set("userID", p.ID)
}
