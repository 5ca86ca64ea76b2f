package routes

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/infradash/infradash-backend/internal/api/http/middleware"
	"github.com/infradash/infradash-backend/internal/auth"
	authhttp "github.com/infradash/infradash-backend/internal/auth/http"
	ingesthttp "github.com/infradash/infradash-backend/internal/ingest/http"
	ingestservice "github.com/infradash/infradash-backend/internal/ingest/service"
	projectshttp "github.com/infradash/infradash-backend/internal/projects/http"
	projectservice "github.com/infradash/infradash-backend/internal/projects/service"
)

type Deps struct {
	Projects    *projectservice.ProjectService
	Coordinator *ingestservice.Coordinator
	Authorizer  auth.Authorizer
	Tokens      auth.TokenValidator
}

// Register mounts all routes. Read endpoints live under /api/v1; the
// upload and token endpoints sit at the root to match the admin client.
func Register(r *gin.Engine, dep Deps) {
	r.Use(middleware.RequestID())

	api := r.Group("/api/v1")
	projectshttp.Register(api, dep.Projects)

	// uploads are heavy; one concurrent-ish upload per client is plenty
	uploadLimiter := middleware.RateLimit(rate.Limit(0.2), 2)
	ingesthttp.Register(r, dep.Coordinator, dep.Authorizer, dep.Tokens, uploadLimiter)

	authhttp.NewTokenHandler(dep.Tokens).RegisterRoutes(r, dep.Authorizer)
}
