package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/database"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/events"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/search"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

func main() {
	var reset bool
	var follow bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the Typesense collection before reindexing")
	flag.BoolVar(&follow, "follow", true, "keep the index current from request events after the backfill")
	flag.StringVar(&intervalFlag, "interval", "", "repeat the full backfill on this interval (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.App.Environment)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}
	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			log.Fatal().Str("interval", intervalValue).Msg("Interval must be a positive duration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Typesense client")
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.RequestsCollection).Msg("Deleting search collection")
		if _, err := tsClient.Client().Collection(typesense.RequestsCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to init Typesense schema")
	}

	// Following events needs Redis; a backfill alone does not
	var indexer *services.RequestIndexer
	requestRepo := database.NewMaintenanceRequestAdapter(pgClient)
	searchRepo := search.NewTypesenseAdapter(tsClient)
	if follow {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis client")
		}
		defer redisClient.Close()
		eventBus := events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
		indexer = services.NewRequestIndexer(requestRepo, searchRepo, eventBus)
	} else {
		indexer = services.NewRequestIndexer(requestRepo, searchRepo, nil)
	}

	backfill := func() {
		start := time.Now()
		indexed, err := indexer.Backfill(ctx)
		if err != nil {
			log.Error().Err(err).Int("indexed", indexed).Msg("Backfill failed")
			return
		}
		log.Info().Int("indexed", indexed).Dur("took", time.Since(start)).Msg("Backfill complete")
	}
	backfill()

	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					backfill()
				}
			}
		}()
	}

	if !follow {
		if interval > 0 {
			<-ctx.Done()
		}
		log.Info().Msg("Indexer stopped")
		return
	}

	if err := indexer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Request indexer failed")
	}
	log.Info().Msg("Indexer stopped")
}
