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
		log.Println("creating step_events table...")
		if err := mghelper.CreateSchema(ctx, db, &runstore.StepEventDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &runstore.StepEventDao{}, "execution_id, seq"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &runstore.StepEventDao{}, "run_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping step_events table...")
		return mghelper.DropTables(ctx, db, &runstore.StepEventDao{})
	})
}
