package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const uniqueViolation = "23505"

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Create creates a new facility
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	query := `
		INSERT INTO facilities (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		facility.ID,
		facility.Name,
		facility.Description,
		facility.IsActive,
		facility.CreatedAt,
		facility.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflictError(fmt.Sprintf("facility %q already exists", facility.Name))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to create facility", err)
	}

	return nil
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM facilities
		WHERE id = $1
	`

	facility := &entities.Facility{}
	err := a.client.DB().QueryRowContext(ctx, query, id).Scan(
		&facility.ID,
		&facility.Name,
		&facility.Description,
		&facility.IsActive,
		&facility.CreatedAt,
		&facility.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}

	return facility, nil
}

// Update updates a facility
func (a *FacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	query := `
		UPDATE facilities SET name = $2, description = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := a.client.DB().ExecContext(ctx, query,
		facility.ID,
		facility.Name,
		facility.Description,
		facility.IsActive,
		facility.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflictError(fmt.Sprintf("facility %q already exists", facility.Name))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to update facility", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", facility.ID))
	}

	return nil
}

// Delete removes a facility
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	result, err := a.client.DB().ExecContext(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}

	return nil
}

// List retrieves facilities with filters, ordered by name
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM facilities
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = $%d", argCount)
		args = append(args, *filter.IsActive)
		argCount++
	}

	query += " ORDER BY name ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list facilities", err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility := &entities.Facility{}
		err := rows.Scan(
			&facility.ID,
			&facility.Name,
			&facility.Description,
			&facility.IsActive,
			&facility.CreatedAt,
			&facility.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating facilities", err)
	}

	return facilities, nil
}

// CountActive returns the number of active facilities
func (a *FacilityAdapter) CountActive(ctx context.Context) (int, error) {
	var count int
	err := a.client.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities WHERE is_active = true`).Scan(&count)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to count facilities", err)
	}
	return count, nil
}
