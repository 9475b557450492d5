package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
)

// CacheInvalidationService drops cached aggregates when requests change
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelRequestUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to request updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.RequestEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			s.HandleEvent(event)
		}
	}
}

// HandleEvent invalidates the analytics snapshot for a request change.
// Notification events do not touch aggregates.
func (s *CacheInvalidationService) HandleEvent(event *entities.RequestEvent) {
	if event == nil || event.Type == entities.RequestEventNotification {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, AnalyticsCacheKey); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to invalidate analytics cache")
		return
	}
	log.Debug().Str("event_id", event.ID).Str("request_id", event.RequestID).Msg("Invalidated analytics cache")
}
