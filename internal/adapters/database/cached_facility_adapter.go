package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

// CachedFacilityAdapter wraps FacilityAdapter with caching
type CachedFacilityAdapter struct {
	adapter repositories.FacilityRepository
	cache   providers.CacheProvider
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider) repositories.FacilityRepository {
	return &CachedFacilityAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	facilityByIDTTL   = 300
	facilitiesListTTL = 180
)

const (
	facilitiesActiveKey = "facilities:list:active"
	facilitiesAllKey    = "facilities:list:all"
)

func facilityCacheKey(id string) string {
	return fmt.Sprintf("facility:%s", id)
}

// facilitiesListCacheKey returns "" for paged or unusual filters, which are not cached.
func facilitiesListCacheKey(filter repositories.FacilityFilter) string {
	if filter.Limit > 0 || filter.Offset > 0 {
		return ""
	}
	if filter.IsActive == nil {
		return facilitiesAllKey
	}
	if *filter.IsActive {
		return facilitiesActiveKey
	}
	return ""
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := facilityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facility entities.Facility
		if err := json.Unmarshal(cached, &facility); err == nil {
			return &facility, nil
		}
		log.Warn().Err(err).Str("facility_id", id).Msg("Failed to unmarshal cached facility")
	}

	facility, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.store(ctx, cacheKey, facility, facilityByIDTTL)
	return facility, nil
}

// List retrieves a list of facilities with caching
func (a *CachedFacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	cacheKey := facilitiesListCacheKey(filter)
	if cacheKey == "" {
		return a.adapter.List(ctx, filter)
	}

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facilities []*entities.Facility
		if err := json.Unmarshal(cached, &facilities); err == nil {
			return facilities, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to unmarshal cached facilities list")
	}

	facilities, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	a.store(ctx, cacheKey, facilities, facilitiesListTTL)
	return facilities, nil
}

// CountActive is not cached
func (a *CachedFacilityAdapter) CountActive(ctx context.Context) (int, error) {
	return a.adapter.CountActive(ctx)
}

// Create creates a facility and invalidates the list caches
func (a *CachedFacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	if err := a.adapter.Create(ctx, facility); err != nil {
		return err
	}
	a.invalidate(ctx, "")
	return nil
}

// Update updates a facility and invalidates its caches
func (a *CachedFacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	if err := a.adapter.Update(ctx, facility); err != nil {
		return err
	}
	a.invalidate(ctx, facility.ID)
	return nil
}

// Delete deletes a facility and invalidates its caches
func (a *CachedFacilityAdapter) Delete(ctx context.Context, id string) error {
	if err := a.adapter.Delete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

func (a *CachedFacilityAdapter) store(ctx context.Context, key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache facilities")
	}
}

func (a *CachedFacilityAdapter) invalidate(ctx context.Context, id string) {
	keys := []string{facilitiesActiveKey, facilitiesAllKey}
	if id != "" {
		keys = append(keys, facilityCacheKey(id))
	}
	for _, key := range keys {
		if err := a.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate facility cache")
		}
	}
}
