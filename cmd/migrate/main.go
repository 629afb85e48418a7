package main

import (
	"errors"
	"flag"

	"licensedesk/api/internal/config"
	"licensedesk/api/internal/db/migrate"
	"licensedesk/api/internal/log"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	switch err := migrate.Run(cfg.Postgres.DSN, *direction); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info().Str("direction", *direction).Msg("schema already up to date")
	case err != nil:
		logger.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	default:
		logger.Info().Str("direction", *direction).Msg("migrations applied")
	}
}
