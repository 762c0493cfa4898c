package rundb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/anchor-orchestrator/pkg/pgutil/migrations"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating executions table...")
		if err := mghelper.CreateSchema(ctx, db, &runstore.ExecutionDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &runstore.ExecutionDao{}, "run_id", "started_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping executions table...")
		return mghelper.DropTables(ctx, db, &runstore.ExecutionDao{})
	})
}
