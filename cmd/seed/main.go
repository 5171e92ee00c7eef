package main

import (
	"context"
	"flag"
	"os"

	"taskboard-api/cmd/seed/fixtures"
	"taskboard-api/pkg/config"
	"taskboard-api/pkg/orm"
	"taskboard-api/pkg/task"
	"taskboard-api/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	debug := flag.Bool("debug", false, "sets log level to debug")
	migrate := flag.Bool("migrate", false, "apply the tasks schema before seeding (Postgres only)")
	migrateOnly := flag.Bool("migrate-only", false, "apply the schema and exit without seeding")
	flag.Parse()

	utils.LoadEnvFile()
	utils.SetupLogger(*debug, false)

	ctx := context.Background()
	cfg := config.Load()
	if err := cfg.ResolveSecrets(ctx, config.FetchAwsSecret); err != nil {
		log.Error().Err(err).Msg("Failed to resolve secrets")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	store, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to task store")
		os.Exit(1)
	}
	defer store.Close()

	if *migrate || *migrateOnly {
		pg, ok := store.(*orm.PostgresStore)
		if !ok {
			log.Error().Str("store", string(cfg.Store())).Msg("Schema migration needs DATABASE_URL")
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to apply schema")
			os.Exit(1)
		}
		if *migrateOnly {
			return
		}
	}

	created, err := fixtures.NewFixtureService(task.NewTaskService(store)).SeedTasks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to seed tasks")
		os.Exit(1)
	}
	log.Info().Int("count", len(created)).Msg("Seeded tasks")
}
