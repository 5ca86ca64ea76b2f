package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infradash/infradash-backend/internal/auth"
	"github.com/infradash/infradash-backend/internal/auth/middleware"
)

// TokenHandler issues anti-forgery tokens for authenticated sessions.
type TokenHandler struct {
	tokens auth.TokenValidator
}

func NewTokenHandler(tokens auth.TokenValidator) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) IssueToken(c *gin.Context) {
	sessionID := c.GetString("principal_id")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *TokenHandler) RegisterRoutes(r gin.IRouter, authorizer auth.Authorizer) {
	r.GET("/auth/token", middleware.RequireAuth(authorizer), h.IssueToken)
}
