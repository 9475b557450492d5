package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// AnalyticsAdapter implements AnalyticsRepository with aggregate SQL
type AnalyticsAdapter struct {
	db *sqlx.DB
}

// NewAnalyticsAdapter creates a new analytics adapter
func NewAnalyticsAdapter(client *postgres.Client) repositories.AnalyticsRepository {
	return &AnalyticsAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// CountBy groups all requests by one of the allowed columns. Rows with a
// NULL value (e.g. requests never evaluated) are skipped.
func (a *AnalyticsAdapter) CountBy(ctx context.Context, column repositories.AnalyticsDimension) ([]entities.GroupCount, error) {
	if !column.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported analytics dimension %q", column))
	}

	query := fmt.Sprintf(`
		SELECT %[1]s AS key, COUNT(*) AS count
		FROM maintenance_requests
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
	`, column)

	counts := []entities.GroupCount{}
	if err := a.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate requests", err)
	}
	return counts, nil
}

// CountByVisualRole groups requests by the requester's descriptive label
func (a *AnalyticsAdapter) CountByVisualRole(ctx context.Context) ([]entities.GroupCount, error) {
	query := `
		SELECT p.visual_role AS key, COUNT(*) AS count
		FROM maintenance_requests r
		JOIN profiles p ON p.id = r.requester_id
		WHERE p.visual_role IS NOT NULL
		GROUP BY p.visual_role
	`

	counts := []entities.GroupCount{}
	if err := a.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate requests by role", err)
	}
	return counts, nil
}

// DailyCounts returns requests created per UTC day since the given time
func (a *AnalyticsAdapter) DailyCounts(ctx context.Context, since time.Time) ([]entities.DailyCount, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
		FROM maintenance_requests
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`

	counts := []entities.DailyCount{}
	if err := a.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, apperrors.NewInternalError("failed to load daily request counts", err)
	}
	return counts, nil
}

// UrgencySince groups requests created since the given time by urgency
func (a *AnalyticsAdapter) UrgencySince(ctx context.Context, since time.Time) ([]entities.GroupCount, error) {
	query := `
		SELECT urgency AS key, COUNT(*) AS count
		FROM maintenance_requests
		WHERE created_at >= $1
		GROUP BY urgency
	`

	counts := []entities.GroupCount{}
	if err := a.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate urgency", err)
	}
	return counts, nil
}

// AverageResolutionHours averages completed_at - created_at over completed requests
func (a *AnalyticsAdapter) AverageResolutionHours(ctx context.Context) (float64, error) {
	query := `
		SELECT AVG(EXTRACT(EPOCH FROM (completed_at - created_at)) / 3600.0)
		FROM maintenance_requests
		WHERE status = 'Completed' AND completed_at IS NOT NULL
	`

	var avg sql.NullFloat64
	if err := a.db.GetContext(ctx, &avg, query); err != nil {
		return 0, apperrors.NewInternalError("failed to compute resolution time", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// PendingEmergencies counts Pending requests with Emergency urgency
func (a *AnalyticsAdapter) PendingEmergencies(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM maintenance_requests WHERE status = 'Pending' AND urgency = 'Emergency'`
	if err := a.db.GetContext(ctx, &count, query); err != nil {
		return 0, apperrors.NewInternalError("failed to count pending emergencies", err)
	}
	return count, nil
}
