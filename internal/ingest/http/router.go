package http

import (
	"github.com/gin-gonic/gin"

	"github.com/infradash/infradash-backend/internal/auth"
	authmw "github.com/infradash/infradash-backend/internal/auth/middleware"
	"github.com/infradash/infradash-backend/internal/ingest/service"
)

// Register mounts the bulk upload endpoint. Extra middleware (e.g. the
// rate limiter) runs before the admin check.
func Register(r gin.IRouter, coordinator *service.Coordinator, authorizer auth.Authorizer, tokens auth.TokenValidator, extra ...gin.HandlerFunc) {
	h := NewUploadHandler(coordinator)

	handlers := append([]gin.HandlerFunc{}, extra...)
	handlers = append(handlers, authmw.AdminAuth(authorizer, tokens), h.Upload)
	r.POST("/upload", handlers...)
}
