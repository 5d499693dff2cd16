// Knowledge-base schema migration tool
package main

import (
	"context"
	"flag"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/irisfin/advisor/internal/config"
	"github.com/irisfin/advisor/internal/knowledge"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	command := flag.String("command", "migrate", "command to run: migrate or status")
	migrationsDir := flag.String("migrations", "migrations", "path to migrations directory")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	migrator := knowledge.NewMigrator(pool, *migrationsDir)

	switch *command {
	case "migrate":
		if err := migrator.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	case "status":
		if err := migrator.Status(ctx); err != nil {
			log.Fatal().Err(err).Msg("Status check failed")
		}
	default:
		log.Fatal().Str("command", *command).Msg("Unknown command (expected migrate or status)")
	}
}
