package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// TokenVersions reports the current token version of an account. *Repo
// satisfies it.
type TokenVersions interface {
	GetTokenVersion(ctx context.Context, id string) (int, error)
}

// Required rejects requests without a valid, unrevoked bearer token.
func Required(tokens TokenService, versions TokenVersions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}
		claims, err := verify(c.Request.Context(), tokens, versions, raw)
		if err != nil || claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// Optional attaches claims when a bearer token is present. Anonymous requests
// pass through; a present but invalid token is still rejected.
func Optional(tokens TokenService, versions TokenVersions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			c.Next()
			return
		}
		claims, err := verify(c.Request.Context(), tokens, versions, raw)
		if err != nil || claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[len("Bearer "):])
	return raw, raw != ""
}

func verify(ctx context.Context, tokens TokenService, versions TokenVersions, raw string) (*Claims, error) {
	claims, err := tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if versions != nil {
		current, err := versions.GetTokenVersion(ctx, claims.AccountID)
		if err != nil {
			return nil, err
		}
		if current != claims.TokenVersion {
			return nil, nil
		}
	}
	return claims, nil
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// Contributor returns the authenticated contributor name, or fallback for
// anonymous requests.
func Contributor(c *gin.Context, fallback string) string {
	if claims := MustGetClaims(c); claims != nil && claims.Name != "" {
		return claims.Name
	}
	return fallback
}
