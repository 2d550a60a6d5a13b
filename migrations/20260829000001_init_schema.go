package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/db"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, bdb *bun.DB) error {
			return db.InitSchema(ctx, bdb)
		},
		func(ctx context.Context, bdb *bun.DB) error {
			tables := []string{
				"ai_models",
				"webhook_events",
				"price_products",
				"payments",
				"subscriptions",
				"code_generations",
				"chat_messages",
				"chat_sessions",
				"project_files",
				"projects",
				"sessions",
				"users",
			}
			for _, t := range tables {
				if _, err := bdb.ExecContext(ctx, "DROP TABLE IF EXISTS "+t+" CASCADE"); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
