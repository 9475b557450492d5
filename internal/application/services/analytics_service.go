package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

const (
	// AnalyticsCacheKey holds the latest request analytics snapshot
	AnalyticsCacheKey = "analytics:requests"
	analyticsCacheTTL = 60
	timeSeriesDays    = 30
)

// AnalyticsService builds the admin reporting snapshot
type AnalyticsService struct {
	repo    repositories.AnalyticsRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAnalyticsService creates a new analytics service. cache may be nil.
func NewAnalyticsService(repo repositories.AnalyticsRepository, cache providers.CacheProvider, metrics *observability.Metrics) *AnalyticsService {
	return &AnalyticsService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		now:     time.Now,
	}
}

// RequestAnalytics returns the snapshot, served from cache for up to a minute. Admin only.
func (s *AnalyticsService) RequestAnalytics(ctx context.Context) (*entities.RequestAnalytics, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, AnalyticsCacheKey); err == nil {
			var snapshot entities.RequestAnalytics
			if err := json.Unmarshal(data, &snapshot); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, AnalyticsCacheKey)
				return &snapshot, nil
			}
		}
		observability.RecordCacheMiss(ctx, s.metrics, AnalyticsCacheKey)
	}

	snapshot, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.Set(ctx, AnalyticsCacheKey, data, analyticsCacheTTL); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to cache analytics snapshot")
			}
		}
	}
	return snapshot, nil
}

func (s *AnalyticsService) build(ctx context.Context) (*entities.RequestAnalytics, error) {
	now := s.now().UTC()
	snapshot := entities.NewRequestAnalytics(now)

	dimensions := []struct {
		column repositories.AnalyticsDimension
		into   map[string]int
	}{
		{repositories.DimensionStatus, snapshot.StatusCounts},
		{repositories.DimensionCategory, snapshot.CategoryCounts},
		{repositories.DimensionUrgency, snapshot.UrgencyCounts},
		{repositories.DimensionEvaluation, snapshot.EvaluationCounts},
	}
	for _, d := range dimensions {
		counts, err := s.repo.CountBy(ctx, d.column)
		if err != nil {
			return nil, err
		}
		mergeCounts(d.into, counts)
	}

	for _, count := range snapshot.StatusCounts {
		snapshot.Total += count
	}

	roleCounts, err := s.repo.CountByVisualRole(ctx)
	if err != nil {
		return nil, err
	}
	mergeCounts(snapshot.VisualRoleCounts, roleCounts)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(timeSeriesDays - 1))
	daily, err := s.repo.DailyCounts(ctx, since)
	if err != nil {
		return nil, err
	}
	snapshot.TimeSeries = entities.FillDailySeries(daily, since, today)

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthly, err := s.repo.UrgencySince(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	mergeCounts(snapshot.MonthlyUrgency, monthly)

	avg, err := s.repo.AverageResolutionHours(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.AverageResolutionH = avg

	return snapshot, nil
}

func mergeCounts(into map[string]int, counts []entities.GroupCount) {
	for _, c := range counts {
		into[c.Key] += c.Count
	}
}
