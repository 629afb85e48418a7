package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"licensedesk/api/internal/config"
	"licensedesk/api/internal/database"
	"licensedesk/api/internal/ids"
	"licensedesk/api/internal/log"
	"licensedesk/api/internal/models"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/security"
)

// Seeds the initial owner account. Safe to run repeatedly: an existing
// username is left untouched.
func main() {
	username := flag.String("username", "admin", "owner username")
	password := flag.String("password", "", "owner password (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	if *password == "" {
		logger.Fatal().Msg("-password is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	accounts := repository.NewAccountRepository(pool, cfg.Postgres.QueryTimeout)

	if _, err := accounts.GetByUsername(ctx, *username); err == nil {
		logger.Info().Str("username", *username).Msg("account already exists, nothing to do")
		return
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		logger.Fatal().Err(err).Msg("lookup failed")
	}

	hash, err := security.HashPassword(*password)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}

	owner := models.Account{
		ID:           ids.New(),
		Username:     *username,
		PasswordHash: hash,
		Role:         models.RoleOwner,
	}
	entry := models.AuditLog{
		ID:          ids.New(),
		Action:      models.AuditCreateAccount,
		PerformedBy: "system",
		Target:      *username,
		Details:     "initial owner seeded",
	}

	if err := accounts.Create(ctx, owner, entry); err != nil {
		logger.Fatal().Err(err).Msg("seed owner")
	}

	logger.Info().Str("username", *username).Msg("owner account created")
}
