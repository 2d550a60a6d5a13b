package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

type table struct {
	model       any
	name        string
	foreignKeys []string
}

// schemaTables lists every table in dependency order so the foreign
// keys resolve.
func schemaTables() []table {
	return []table{
		{model: (*models.User)(nil), name: "users"},
		{
			model: (*models.Session)(nil),
			name:  "sessions",
			foreignKeys: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.Project)(nil),
			name:  "projects",
			foreignKeys: []string{
				`("owner_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.ProjectFile)(nil),
			name:  "project_files",
			foreignKeys: []string{
				`("project_id") REFERENCES "projects" ("id") ON DELETE CASCADE`,
				`("parent_id") REFERENCES "project_files" ("id") ON DELETE SET NULL`,
			},
		},
		{
			model: (*models.ChatSession)(nil),
			name:  "chat_sessions",
			foreignKeys: []string{
				`("project_id") REFERENCES "projects" ("id") ON DELETE CASCADE`,
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.ChatMessage)(nil),
			name:  "chat_messages",
			foreignKeys: []string{
				`("session_id") REFERENCES "chat_sessions" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.CodeGeneration)(nil),
			name:  "code_generations",
			foreignKeys: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
				`("project_id") REFERENCES "projects" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.Subscription)(nil),
			name:  "subscriptions",
			foreignKeys: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			},
		},
		{
			model: (*models.Payment)(nil),
			name:  "payments",
			foreignKeys: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			},
		},
		{model: (*models.PriceProduct)(nil), name: "price_products"},
		{model: (*models.WebhookEvent)(nil), name: "webhook_events"},
		{model: (*models.AIModel)(nil), name: "ai_models"},
	}
}

// InitSchema creates every table and index. All statements are
// idempotent.
func InitSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "pgcrypto"`); err != nil {
		return fmt.Errorf("failed to enable pgcrypto: %w", err)
	}

	for _, t := range schemaTables() {
		q := db.NewCreateTable().
			Model(t.model).
			IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*models.Session)(nil), "idx_sessions_user_id", []string{"user_id"}},
		{(*models.Session)(nil), "idx_sessions_expires_at", []string{"expires_at"}},
		{(*models.Project)(nil), "idx_projects_owner_id", []string{"owner_id"}},
		{(*models.Project)(nil), "idx_projects_updated_at", []string{"updated_at"}},
		{(*models.ProjectFile)(nil), "idx_project_files_project_id", []string{"project_id"}},
		{(*models.ProjectFile)(nil), "idx_project_files_parent_id", []string{"parent_id"}},
		{(*models.ProjectFile)(nil), "idx_project_files_path", []string{"project_id", "path"}},
		{(*models.ChatSession)(nil), "idx_chat_sessions_project_id", []string{"project_id"}},
		{(*models.ChatMessage)(nil), "idx_chat_messages_session_id", []string{"session_id", "created_at"}},
		{(*models.CodeGeneration)(nil), "idx_code_generations_user_id", []string{"user_id"}},
		{(*models.Subscription)(nil), "idx_subscriptions_user_id", []string{"user_id"}},
		{(*models.Subscription)(nil), "idx_subscriptions_status", []string{"status"}},
		{(*models.Payment)(nil), "idx_payments_user_id", []string{"user_id"}},
		{(*models.WebhookEvent)(nil), "idx_webhook_events_type", []string{"event_type"}},
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
