// Package migrations holds bun migration helpers shared by the schema packages.
package migrations

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Commands lists the supported RunMigrations commands.
var Commands = []string{"init", "up", "down", "status"}

// CreateSchema creates a table for each model if it does not exist.
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the table of each model.
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}

// CreateModelIndexes creates idx_<table>_<column> for each column.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return createIndexes(ctx, db, model, false, columns...)
}

// CreateModelUniqueIndexes creates unique idx_<table>_<column> indexes.
func CreateModelUniqueIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return createIndexes(ctx, db, model, true, columns...)
}

func createIndexes(ctx context.Context, db bun.IDB, model any, unique bool, columns ...string) error {
	for _, column := range columns {
		name, err := ModelIndexName(db, model, column)
		if err != nil {
			return err
		}
		q := db.NewCreateIndex().Model(model).Index(name).Column(splitColumns(column)...).IfNotExists()
		if unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

// ModelIndexName returns the generated index name for model and column.
// A comma separated column list ("a, b") creates one composite index.
func ModelIndexName(db bun.IDB, model any, column string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("model cannot be nil")
	}
	table := db.NewCreateIndex().Model(model).GetTableName()
	if table == "" {
		return "", fmt.Errorf("failed to resolve table name for model %T", model)
	}
	table = strings.NewReplacer(`"`, "", ".", "_").Replace(table)
	return fmt.Sprintf("idx_%s_%s", table, strings.Join(splitColumns(column), "_")), nil
}

func splitColumns(column string) []string {
	parts := strings.Split(column, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// RunMigrations executes command ("init", "up", "down" or "status") and
// writes a human readable report to out.
func RunMigrations(ctx context.Context, migrator *migrate.Migrator, command string, out io.Writer) error {
	switch command {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migration tables created")
		return nil

	case "up", "down":
		if err := migrator.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() { _ = migrator.Unlock(ctx) }()

		if command == "up" {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				fmt.Fprintln(out, "no new migrations to run (database is up to date)")
			} else {
				fmt.Fprintf(out, "migrated to %s\n", group)
			}
			return nil
		}

		group, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}
		if group.IsZero() {
			fmt.Fprintln(out, "no migrations to roll back")
		} else {
			fmt.Fprintf(out, "rolled back %s\n", group)
		}
		return nil

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "migrations: %s\n", ms)
		fmt.Fprintf(out, "unapplied migrations: %s\n", ms.Unapplied())
		fmt.Fprintf(out, "last migration group: %s\n", ms.LastGroup())
		return nil

	default:
		return fmt.Errorf("unknown migration command %q (want one of %s)", command, strings.Join(Commands, ", "))
	}
}
