package db

import "embed"

// MigrationFS embeds the SQL migration files used by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
