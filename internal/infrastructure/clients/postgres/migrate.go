package postgres

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending schema migration
func (c *Client) Migrate(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	goose.SetBaseFS(migrationsFS)
	return goose.UpContext(ctx, c.db, "migrations")
}

// MigrationStatus logs the applied state of each migration
func (c *Client) MigrationStatus(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	goose.SetBaseFS(migrationsFS)
	return goose.StatusContext(ctx, c.db, "migrations")
}

// Rollback reverts the most recent migration
func (c *Client) Rollback(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	goose.SetBaseFS(migrationsFS)
	return goose.DownContext(ctx, c.db, "migrations")
}
