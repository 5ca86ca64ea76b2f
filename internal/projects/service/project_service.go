package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/infradash/infradash-backend/internal/projects/domain"
)

const (
	summaryCacheKey     = "projects:summary"
	defaultListCacheKey = "projects:list:default"
	cacheTTL            = 5 * time.Minute
)

// Repository is the persistence surface the read service needs.
type Repository interface {
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error)
	Summary(ctx context.Context) (*domain.Summary, error)
}

// ProjectService serves the dashboard's read side. The unfiltered first
// page and the chart summary are cached in redis; a completed bulk
// upload invalidates both so subsequent reads observe the new data.
type ProjectService struct {
	repo  Repository
	cache *redis.Client
}

func NewProjectService(repo Repository, cache *redis.Client) *ProjectService {
	return &ProjectService{repo: repo, cache: cache}
}

// List returns projects for the dashboard table. Only the unfiltered
// default page goes through the cache; filtered reads hit the store.
func (s *ProjectService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error) {
	cacheable := filter.Region == "" && filter.Status == "" && filter.Offset == 0 && filter.Limit == 0

	if cacheable && s.cache != nil {
		if data, err := s.cache.Get(ctx, defaultListCacheKey).Result(); err == nil {
			var cached []domain.Project
			if err := json.Unmarshal([]byte(data), &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			log.Printf("[projects] list cache read failed: %v", err)
		}
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if cacheable && s.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, defaultListCacheKey, data, cacheTTL).Err(); err != nil {
				log.Printf("[projects] list cache write failed: %v", err)
			}
		}
	}
	return items, nil
}

// Summary returns the chart aggregation, cached.
func (s *ProjectService) Summary(ctx context.Context) (*domain.Summary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, summaryCacheKey).Result(); err == nil {
			var cached domain.Summary
			if err := json.Unmarshal([]byte(data), &cached); err == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			log.Printf("[projects] summary cache read failed: %v", err)
		}
	}
	return s.RefreshSummary(ctx)
}

// RefreshSummary recomputes the summary and rewrites the cache. The
// cron warmer calls this on a schedule so the first dashboard paint
// after an upload stays fast.
func (s *ProjectService) RefreshSummary(ctx context.Context) (*domain.Summary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, summaryCacheKey, data, cacheTTL).Err(); err != nil {
				log.Printf("[projects] summary cache write failed: %v", err)
			}
		}
	}
	return summary, nil
}

// Invalidate drops the cached list and summary. Called once after a
// bulk upload completes so reads observe the stored records.
func (s *ProjectService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, summaryCacheKey, defaultListCacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate project cache: %w", err)
	}
	return nil
}
