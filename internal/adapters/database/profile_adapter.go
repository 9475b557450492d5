package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

var profileColumns = []interface{}{
	"id", "full_name", "email", "database_role", "visual_role",
	"educational_level", "department", "first_login_completed",
	"login_count", "last_login_at", "created_at", "updated_at",
}

// ProfileAdapter implements ProfileRepository
type ProfileAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProfileAdapter creates a new profile adapter
func NewProfileAdapter(client *postgres.Client) repositories.ProfileRepository {
	return &ProfileAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*entities.Profile, error) {
	p := &entities.Profile{}
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.Role,
		&p.VisualRole,
		&p.EducationalLevel,
		&p.Department,
		&p.FirstLoginCompleted,
		&p.LoginCount,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// GetByID retrieves a profile by identity ID
func (a *ProfileAdapter) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	query, args, err := a.db.Select(profileColumns...).
		From("profiles").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	profile, err := scanProfile(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("profile with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get profile", err)
	}
	return profile, nil
}

// GetByIDs retrieves multiple profiles by identity IDs
func (a *ProfileAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Profile, error) {
	if len(ids) == 0 {
		return []*entities.Profile{}, nil
	}
	return a.list(ctx, a.db.Select(profileColumns...).From("profiles").Where(goqu.Ex{"id": ids}))
}

// List retrieves all profiles, newest first
func (a *ProfileAdapter) List(ctx context.Context) ([]*entities.Profile, error) {
	return a.list(ctx, a.db.Select(profileColumns...).From("profiles").Order(goqu.I("created_at").Desc()))
}

// ListAdmins retrieves every admin profile
func (a *ProfileAdapter) ListAdmins(ctx context.Context) ([]*entities.Profile, error) {
	return a.list(ctx, a.db.Select(profileColumns...).
		From("profiles").
		Where(goqu.Ex{"database_role": string(entities.RoleAdmin)}).
		Order(goqu.I("created_at").Asc()))
}

func (a *ProfileAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Profile, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list profiles", err)
	}
	defer rows.Close()

	profiles := []*entities.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan profile", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating profiles", err)
	}
	return profiles, nil
}

// Count returns the number of profiles
func (a *ProfileAdapter) Count(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).From("profiles").ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count profiles", err)
	}
	return count, nil
}

// InsertIfAbsent inserts the profile unless the trigger already created it
func (a *ProfileAdapter) InsertIfAbsent(ctx context.Context, profile *entities.Profile) (bool, error) {
	record := goqu.Record{
		"id":                profile.ID,
		"full_name":         profile.FullName,
		"email":             nullString(profile.Email),
		"database_role":     string(profile.Role),
		"visual_role":       nullVisualRole(profile.VisualRole),
		"educational_level": nullString(profile.EducationalLevel),
		"department":        nullString(profile.Department),
		"created_at":        profile.CreatedAt,
		"updated_at":        profile.UpdatedAt,
	}

	query, args, err := a.db.Insert("profiles").
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build insert query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to insert profile", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return rowsAffected > 0, nil
}

// UpdateCompletion stores the profile completion form
func (a *ProfileAdapter) UpdateCompletion(ctx context.Context, id string, completion *entities.ProfileCompletion) error {
	return a.update(ctx, id, goqu.Record{
		"full_name":         completion.FullName,
		"visual_role":       string(completion.VisualRole),
		"educational_level": nullString(completion.EducationalLevel),
		"department":        nullString(completion.Department),
		"updated_at":        time.Now().UTC(),
	})
}

// RecordLogin increments the login counter
func (a *ProfileAdapter) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return a.update(ctx, id, goqu.Record{
		"login_count":   goqu.L("login_count + 1"),
		"last_login_at": at,
		"updated_at":    at,
	})
}

// CompleteFirstLogin marks the first login as done
func (a *ProfileAdapter) CompleteFirstLogin(ctx context.Context, id string) error {
	return a.update(ctx, id, goqu.Record{
		"first_login_completed": true,
		"updated_at":            time.Now().UTC(),
	})
}

func (a *ProfileAdapter) update(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update("profiles").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update profile", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("profile with id %s not found", id))
	}
	return nil
}

// UpdateRole calls the update_user_role procedure
func (a *ProfileAdapter) UpdateRole(ctx context.Context, id string, role entities.Role) error {
	_, err := a.client.DB().ExecContext(ctx, `SELECT update_user_role($1, $2)`, id, strings.ToLower(string(role)))
	if err != nil {
		return apperrors.NewInternalError("failed to update user role", err)
	}
	return nil
}

// WaitForSync calls the wait_for_profile_sync procedure
func (a *ProfileAdapter) WaitForSync(ctx context.Context, id string) (bool, error) {
	var synced bool
	err := a.client.DB().QueryRowContext(ctx, `SELECT wait_for_profile_sync($1)`, id).Scan(&synced)
	if err != nil {
		return false, apperrors.NewInternalError("failed to check profile sync", err)
	}
	return synced, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullVisualRole(v *entities.VisualRole) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
