package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema change; files are named <version>_<comment>.go so bun can derive the version.
var Migrations = migrate.NewMigrations()
