package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infradash/infradash-backend/internal/auth"
)

// CSRFHeader carries the anti-forgery token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

// AdminAuth rejects requests that are not an authorized admin carrying
// a valid anti-forgery token. On success the principal ID is stored in
// the gin context under "principal_id".
func AdminAuth(authorizer auth.Authorizer, tokens auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := extractBearer(c)
		if bearer == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			c.Abort()
			return
		}

		principal, err := authorizer.Authorize(c.Request.Context(), bearer)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			} else {
				c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			}
			c.Abort()
			return
		}
		if !principal.Admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		if err := tokens.Validate(c.Request.Context(), principal.ID, c.GetHeader(CSRFHeader)); err != nil {
			// 403 tells the client to refresh its token and retry
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid anti-forgery token"})
			c.Abort()
			return
		}

		c.Set("principal_id", principal.ID)
		c.Next()
	}
}

// RequireAuth is AdminAuth without the anti-forgery check, for read-only
// endpoints such as token issuance.
func RequireAuth(authorizer auth.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := extractBearer(c)
		if bearer == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			c.Abort()
			return
		}

		principal, err := authorizer.Authorize(c.Request.Context(), bearer)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			} else {
				c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			}
			c.Abort()
			return
		}

		c.Set("principal_id", principal.ID)
		c.Next()
	}
}

// extractBearer pulls the token out of the Authorization header.
func extractBearer(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
