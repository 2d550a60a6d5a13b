package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cascadeEdges(t *testing.T, tableName string) []string {
	t.Helper()
	for _, tbl := range schemaTables() {
		if tbl.name == tableName {
			return tbl.foreignKeys
		}
	}
	t.Fatalf("table %s not declared", tableName)
	return nil
}

func hasCascade(edges []string, column, target string) bool {
	for _, fk := range edges {
		if strings.Contains(fk, `("`+column+`")`) &&
			strings.Contains(fk, `REFERENCES "`+target+`"`) &&
			strings.Contains(fk, "ON DELETE CASCADE") {
			return true
		}
	}
	return false
}

// Deleting a project relies entirely on these FK edges; every
// dependent table must cascade or rows are orphaned.
func TestProjectDeleteCascades(t *testing.T) {
	for _, tableName := range []string{"project_files", "chat_sessions", "code_generations"} {
		edges := cascadeEdges(t, tableName)
		assert.True(t, hasCascade(edges, "project_id", "projects"),
			"%s must cascade on project delete", tableName)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	for _, tableName := range []string{"sessions", "projects", "code_generations", "subscriptions", "payments"} {
		edges := cascadeEdges(t, tableName)
		column := "user_id"
		if tableName == "projects" {
			column = "owner_id"
		}
		assert.True(t, hasCascade(edges, column, "users"),
			"%s must cascade on user delete", tableName)
	}
}

func TestTablesDeclaredInDependencyOrder(t *testing.T) {
	seen := map[string]bool{}
	for _, tbl := range schemaTables() {
		for _, fk := range tbl.foreignKeys {
			start := strings.Index(fk, `REFERENCES "`)
			require.GreaterOrEqual(t, start, 0)
			rest := fk[start+len(`REFERENCES "`):]
			target := rest[:strings.Index(rest, `"`)]
			if target != tbl.name {
				assert.True(t, seen[target], "%s references %s before it is created", tbl.name, target)
			}
		}
		seen[tbl.name] = true
	}
}
