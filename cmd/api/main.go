package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/infradash/infradash-backend/config"
	apihttp "github.com/infradash/infradash-backend/internal/api/http"
	"github.com/infradash/infradash-backend/internal/api/http/routes"
	"github.com/infradash/infradash-backend/internal/auth"
	ingestservice "github.com/infradash/infradash-backend/internal/ingest/service"
	"github.com/infradash/infradash-backend/internal/projects/repository"
	projectservice "github.com/infradash/infradash-backend/internal/projects/service"
	"github.com/infradash/infradash-backend/internal/storage/postgres"
)

const serviceName = "infradash-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	repo := repository.New(pool)
	projects := projectservice.NewProjectService(repo, rdb)
	coordinator := ingestservice.NewCoordinator(
		repo,
		projects,
		cfg.Ingest.BatchSize,
		time.Duration(cfg.Ingest.BatchDelayMs)*time.Millisecond,
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-CSRF-Token", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	apihttp.NewHealthHandler(serviceName, cfg.App.Version, pool, rdb).RegisterRoutes(r)
	routes.Register(r, routes.Deps{
		Projects:    projects,
		Coordinator: coordinator,
		Authorizer:  auth.NewAPIKeyAuthorizer(cfg.Auth.AdminAPIKey),
		Tokens:      auth.NewRedisTokenStore(rdb),
	})

	// keep the summary cache warm so the first dashboard paint after an
	// upload invalidation is fast
	warmer := cron.New()
	if _, err := warmer.AddFunc("@every 10m", func() {
		if _, err := projects.RefreshSummary(context.Background()); err != nil {
			log.Printf("[warmer] summary refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule cache warmer: %v", err)
	}
	warmer.Start()
	defer warmer.Stop()

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
