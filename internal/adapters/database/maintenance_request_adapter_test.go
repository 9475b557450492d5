package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/database"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

var requestRowColumns = []string{
	"id", "title", "description", "supporting_reasons", "category", "urgency",
	"location_building", "location_room", "status", "requester_id",
	"action_taken", "work_evaluation", "completed_at", "created_at", "updated_at",
}

func TestMaintenanceRequestAdapter_List(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewMaintenanceRequestAdapter(client)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM "maintenance_requests" WHERE .*"status" = 'Completed'.* ORDER BY "created_at" DESC LIMIT 10`).
		WillReturnRows(sqlmock.NewRows(requestRowColumns).AddRow(
			"r-1", "Leaking tap", "Tap in lab 2 drips", nil, "Plumbing", "High",
			"Science Block", "Lab 2", "Completed", "u-1",
			"Replaced washer", "Satisfactory", now, now.Add(-48*time.Hour), now,
		))

	requests, err := adapter.List(context.Background(), entities.RequestFilter{
		Status: entities.StatusCompleted,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)

	req := requests[0]
	assert.Equal(t, entities.CategoryPlumbing, req.Category)
	assert.Nil(t, req.SupportingReasons)
	require.NotNil(t, req.LocationRoom)
	assert.Equal(t, "Lab 2", *req.LocationRoom)
	require.NotNil(t, req.WorkEvaluation)
	assert.Equal(t, entities.EvaluationSatisfactory, *req.WorkEvaluation)
	require.NotNil(t, req.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRequestAdapter_GetByIDs_Empty(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewMaintenanceRequestAdapter(client)

	requests, err := adapter.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRequestAdapter_UpdateStatus(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewMaintenanceRequestAdapter(client)
	now := time.Now().UTC()

	req := &entities.MaintenanceRequest{ID: "r-1", Status: entities.StatusPending}
	update := entities.StatusUpdate{
		Status:         entities.StatusCompleted,
		ActionTaken:    "Rewired the socket",
		WorkEvaluation: entities.EvaluationOutstanding,
	}
	update.Apply(req, now)

	mock.ExpectExec(`UPDATE "maintenance_requests" SET .*"status"='Completed'.*"work_evaluation"='Outstanding'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.UpdateStatus(context.Background(), req))

	mock.ExpectExec(q(`UPDATE "maintenance_requests"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := adapter.UpdateStatus(context.Background(), &entities.MaintenanceRequest{ID: "missing", Status: entities.StatusInProgress})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRequestAdapter_CountByStatus(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewMaintenanceRequestAdapter(client)

	mock.ExpectQuery(`GROUP BY "status"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("Pending", 4).
			AddRow("Completed", 2))

	counts, err := adapter.CountByStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"Pending":     4,
		"In Progress": 0,
		"Completed":   2,
		"Cancelled":   0,
		"Reviewed":    0,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
