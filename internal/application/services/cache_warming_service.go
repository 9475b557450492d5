package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

// CacheWarmingService preloads the facility list so the request form opens fast
type CacheWarmingService struct {
	facilityRepo repositories.FacilityRepository
}

// NewCacheWarmingService creates a new cache warming service. facilityRepo
// should be the cached repository so reads populate the cache.
func NewCacheWarmingService(facilityRepo repositories.FacilityRepository) *CacheWarmingService {
	return &CacheWarmingService{
		facilityRepo: facilityRepo,
	}
}

// WarmCache loads the active facility list through the cache
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	active := true
	facilities, err := s.facilityRepo.List(ctx, repositories.FacilityFilter{IsActive: &active})
	if err != nil {
		return fmt.Errorf("failed to warm facilities list: %w", err)
	}

	log.Info().Int("facilities", len(facilities)).Msg("Warmed facility cache")
	return nil
}

// StartPeriodicWarming warms once now and then every interval until ctx ends
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				if err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("Periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}
