// Package rundb holds the migrations for the run history database.
package rundb

import "github.com/uptrace/bun/migrate"

// Migrations is the registered migration set, applied in file order.
var Migrations = migrate.NewMigrations()
