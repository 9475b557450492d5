package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

const backfillPageSize = 200

// RequestIndexer keeps the search index in step with the database
type RequestIndexer struct {
	requests repositories.MaintenanceRequestRepository
	search   repositories.RequestSearchRepository
	events   providers.EventBus
}

// NewRequestIndexer creates a new request indexer
func NewRequestIndexer(requests repositories.MaintenanceRequestRepository, search repositories.RequestSearchRepository, events providers.EventBus) *RequestIndexer {
	return &RequestIndexer{
		requests: requests,
		search:   search,
		events:   events,
	}
}

// Backfill indexes every stored request and returns how many were indexed
func (i *RequestIndexer) Backfill(ctx context.Context) (int, error) {
	indexed := 0
	for offset := 0; ; offset += backfillPageSize {
		page, err := i.requests.List(ctx, entities.RequestFilter{Limit: backfillPageSize, Offset: offset})
		if err != nil {
			return indexed, fmt.Errorf("failed to list requests at offset %d: %w", offset, err)
		}

		for _, req := range page {
			if err := i.search.Index(ctx, req); err != nil {
				log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to index request")
				continue
			}
			indexed++
		}

		if len(page) < backfillPageSize {
			return indexed, nil
		}
	}
}

// Run follows request events until ctx ends
func (i *RequestIndexer) Run(ctx context.Context) error {
	events, err := i.events.Subscribe(ctx, providers.EventChannelRequestUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to request updates: %w", err)
	}

	log.Info().Str("channel", providers.EventChannelRequestUpdates).Msg("Request indexer listening")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			i.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent reindexes the request an event refers to
func (i *RequestIndexer) HandleEvent(ctx context.Context, event *entities.RequestEvent) {
	if event == nil || event.RequestID == "" {
		return
	}
	if event.Type != entities.RequestEventCreated && event.Type != entities.RequestEventStatusChanged {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := i.requests.GetByID(ctx, event.RequestID)
	if err != nil {
		log.Warn().Err(err).Str("request_id", event.RequestID).Msg("Failed to load request for indexing")
		return
	}
	if err := i.search.Index(ctx, req); err != nil {
		log.Warn().Err(err).Str("request_id", event.RequestID).Msg("Failed to index request")
		return
	}
	log.Debug().Str("request_id", req.ID).Str("event_type", string(event.Type)).Msg("Indexed request")
}
