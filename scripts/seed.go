package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/database"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

var seedFacilities = []struct {
	name        string
	description string
}{
	{"Main Hall", "Assembly hall, stage and the two adjoining classrooms"},
	{"Science Block", "Laboratories, prep rooms and the fume cupboard extraction"},
	{"Sports Centre", "Gym, changing rooms and the outdoor courts"},
	{"Library", "Reading rooms, study carrels and the archive store"},
	{"Residence A", "Student accommodation, floors 1 to 4"},
	{"Car Park", "Visitor and staff parking including barrier and lighting"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.App.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				notifications,
				maintenance_requests,
				facilities
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	facilityRepo := database.NewFacilityAdapter(pgClient)

	created := 0
	for _, seed := range seedFacilities {
		now := time.Now().UTC()
		facility := &entities.Facility{
			ID:          uuid.NewString(),
			Name:        seed.name,
			Description: seed.description,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := facilityRepo.Create(ctx, facility); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				log.Info().Str("facility", seed.name).Msg("Facility already exists, skipping")
				continue
			}
			log.Error().Err(err).Str("facility", seed.name).Msg("Failed to create facility")
			continue
		}
		created++
	}

	log.Info().Int("created", created).Int("total", len(seedFacilities)).Msg("Seeding complete")
}
