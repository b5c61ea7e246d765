package db

import "embed"

// MigrationFS embeds the SQL migrations applied by cmd/migrate, the server
// start-up hook and the integration tests.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
