package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [up|status|down]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-migrate", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	switch command {
	case "up":
		err = pgClient.Migrate(ctx)
	case "status":
		err = pgClient.MigrationStatus(ctx)
	case "down":
		err = pgClient.Rollback(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration command failed")
	}
	log.Info().Str("command", command).Msg("Migration command complete")
}
