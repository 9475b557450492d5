package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const requestsTable = "maintenance_requests"

var requestColumns = []interface{}{
	"id", "title", "description", "supporting_reasons", "category", "urgency",
	"location_building", "location_room", "status", "requester_id",
	"action_taken", "work_evaluation", "completed_at", "created_at", "updated_at",
}

// MaintenanceRequestAdapter implements MaintenanceRequestRepository
type MaintenanceRequestAdapter struct {
	db   *goqu.Database
	sqlx *sqlx.DB
}

// NewMaintenanceRequestAdapter creates a new maintenance request adapter
func NewMaintenanceRequestAdapter(client *postgres.Client) repositories.MaintenanceRequestRepository {
	return &MaintenanceRequestAdapter{
		db:   goqu.New("postgres", client.DB()),
		sqlx: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// Create stores a new request
func (a *MaintenanceRequestAdapter) Create(ctx context.Context, req *entities.MaintenanceRequest) error {
	record := goqu.Record{
		"id":                 req.ID,
		"title":              req.Title,
		"description":        req.Description,
		"supporting_reasons": nullString(req.SupportingReasons),
		"category":           string(req.Category),
		"urgency":            string(req.Urgency),
		"location_building":  req.LocationBuilding,
		"location_room":      nullString(req.LocationRoom),
		"status":             string(req.Status),
		"requester_id":       req.RequesterID,
		"created_at":         req.CreatedAt,
		"updated_at":         req.UpdatedAt,
	}

	query, args, err := a.db.Insert(requestsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.sqlx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create maintenance request", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (a *MaintenanceRequestAdapter) GetByID(ctx context.Context, id string) (*entities.MaintenanceRequest, error) {
	query, args, err := a.db.Select(requestColumns...).
		From(requestsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	req := &entities.MaintenanceRequest{}
	err = a.sqlx.GetContext(ctx, req, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("maintenance request with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get maintenance request", err)
	}
	return req, nil
}

// GetByIDs retrieves several requests, in no particular order
func (a *MaintenanceRequestAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.MaintenanceRequest, error) {
	if len(ids) == 0 {
		return []*entities.MaintenanceRequest{}, nil
	}
	return a.selectRequests(ctx, a.db.Select(requestColumns...).From(requestsTable).Where(goqu.Ex{"id": ids}))
}

// List retrieves requests matching the filter, newest first
func (a *MaintenanceRequestAdapter) List(ctx context.Context, filter entities.RequestFilter) ([]*entities.MaintenanceRequest, error) {
	ds := a.db.Select(requestColumns...).From(requestsTable)

	where := goqu.Ex{}
	if filter.RequesterID != "" {
		where["requester_id"] = filter.RequesterID
	}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		where["category"] = string(filter.Category)
	}
	if filter.Urgency != "" {
		where["urgency"] = string(filter.Urgency)
	}
	if len(where) > 0 {
		ds = ds.Where(where)
	}

	ds = ds.Order(goqu.I("created_at").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.selectRequests(ctx, ds)
}

// SearchText matches the query against the free-text columns
func (a *MaintenanceRequestAdapter) SearchText(ctx context.Context, query string, limit int) ([]*entities.MaintenanceRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	ds := a.db.Select(requestColumns...).
		From(requestsTable).
		Where(goqu.Or(
			goqu.I("title").ILike(pattern),
			goqu.I("description").ILike(pattern),
			goqu.I("location_building").ILike(pattern),
			goqu.I("location_room").ILike(pattern),
		)).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit))

	return a.selectRequests(ctx, ds)
}

func (a *MaintenanceRequestAdapter) selectRequests(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.MaintenanceRequest, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	requests := []*entities.MaintenanceRequest{}
	if err := a.sqlx.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list maintenance requests", err)
	}
	return requests, nil
}

// UpdateStatus persists a status transition with its completion fields
func (a *MaintenanceRequestAdapter) UpdateStatus(ctx context.Context, req *entities.MaintenanceRequest) error {
	record := goqu.Record{
		"status":       string(req.Status),
		"action_taken": nullString(req.ActionTaken),
		"completed_at": sql.NullTime{Valid: req.CompletedAt != nil},
		"updated_at":   req.UpdatedAt,
	}
	if req.CompletedAt != nil {
		record["completed_at"] = sql.NullTime{Time: *req.CompletedAt, Valid: true}
	}
	if req.WorkEvaluation != nil {
		record["work_evaluation"] = string(*req.WorkEvaluation)
	} else {
		record["work_evaluation"] = sql.NullString{}
	}

	query, args, err := a.db.Update(requestsTable).
		Set(record).
		Where(goqu.Ex{"id": req.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.sqlx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update maintenance request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("maintenance request with id %s not found", req.ID))
	}
	return nil
}

// CountByStatus returns request counts per status, optionally for one requester
func (a *MaintenanceRequestAdapter) CountByStatus(ctx context.Context, requesterID string) (map[string]int, error) {
	ds := a.db.Select(goqu.C("status").As("key"), goqu.COUNT("*").As("count")).
		From(requestsTable).
		GroupBy("status")
	if requesterID != "" {
		ds = ds.Where(goqu.Ex{"requester_id": requesterID})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var groups []entities.GroupCount
	if err := a.sqlx.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to count maintenance requests", err)
	}

	counts := make(map[string]int, len(entities.RequestStatuses))
	for _, s := range entities.RequestStatuses {
		counts[string(s)] = 0
	}
	for _, g := range groups {
		counts[g.Key] = g.Count
	}
	return counts, nil
}
