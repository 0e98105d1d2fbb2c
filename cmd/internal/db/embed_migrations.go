package db

import "embed"

// MigrationFS embeds the SQL migration files. The migrate runner
// (cmd/migrate, or TOUTLUX_DB_MIGRATE=true at startup) applies them.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
