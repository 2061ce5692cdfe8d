package interviewcoach

import "embed"

// MigrationsFS holds the Postgres schema migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
