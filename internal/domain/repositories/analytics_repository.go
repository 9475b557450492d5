package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// AnalyticsRepository aggregates request data for reporting
type AnalyticsRepository interface {
	// CountBy groups all requests by one of the allowed columns
	CountBy(ctx context.Context, column AnalyticsDimension) ([]entities.GroupCount, error)

	// CountByVisualRole groups requests by the requester's descriptive label
	CountByVisualRole(ctx context.Context) ([]entities.GroupCount, error)

	// DailyCounts returns requests created per day since the given time
	DailyCounts(ctx context.Context, since time.Time) ([]entities.DailyCount, error)

	// UrgencySince groups requests created since the given time by urgency
	UrgencySince(ctx context.Context, since time.Time) ([]entities.GroupCount, error)

	// AverageResolutionHours averages completed_at - created_at over completed requests
	AverageResolutionHours(ctx context.Context) (float64, error)

	// PendingEmergencies counts Pending requests with Emergency urgency
	PendingEmergencies(ctx context.Context) (int, error)
}

// AnalyticsDimension is a groupable maintenance_requests column
type AnalyticsDimension string

const (
	DimensionStatus     AnalyticsDimension = "status"
	DimensionCategory   AnalyticsDimension = "category"
	DimensionUrgency    AnalyticsDimension = "urgency"
	DimensionEvaluation AnalyticsDimension = "work_evaluation"
)

// IsValid reports whether d can be interpolated into a GROUP BY
func (d AnalyticsDimension) IsValid() bool {
	switch d {
	case DimensionStatus, DimensionCategory, DimensionUrgency, DimensionEvaluation:
		return true
	}
	return false
}
