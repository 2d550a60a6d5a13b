package chat

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvelchev/codeforge/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBuildSystemPrompt(t *testing.T) {
	framework := "fastapi"
	project := &models.Project{
		Name:        "todo-api",
		Language:    "python",
		Framework:   &framework,
		Description: strPtr("a small todo backend"),
	}

	prompt := BuildSystemPrompt(project, "")

	assert.Contains(t, prompt, `"todo-api"`)
	assert.Contains(t, prompt, "python")
	assert.Contains(t, prompt, "fastapi")
	assert.Contains(t, prompt, "a small todo backend")
	assert.NotContains(t, prompt, "attached these project files")

	withFiles := BuildSystemPrompt(project, "--- main.py ---")
	assert.Contains(t, withFiles, "attached these project files")
	assert.Contains(t, withFiles, "--- main.py ---")
}

func TestBuildFileContextTruncatesAndCaps(t *testing.T) {
	long := strings.Repeat("x", maxFileExcerpt+500)
	var refs []*models.ProjectFile
	for i := 0; i < maxContextFiles+2; i++ {
		refs = append(refs, &models.ProjectFile{
			ID:       uuid.New(),
			Path:     "f.py",
			Type:     models.FileTypeFile,
			Content:  &long,
			Language: strPtr("python"),
		})
	}

	out := BuildFileContext(refs)

	assert.Equal(t, maxContextFiles, strings.Count(out, "--- f.py ---"))
	assert.Contains(t, out, "(file truncated)")
	assert.NotContains(t, out, strings.Repeat("x", maxFileExcerpt+1))
}

func TestBuildFileContextSkipsDirectories(t *testing.T) {
	refs := []*models.ProjectFile{
		{ID: uuid.New(), Path: "src", Type: models.FileTypeDirectory},
		{ID: uuid.New(), Path: "src/a.py", Type: models.FileTypeFile, Content: strPtr("print(1)")},
	}

	out := BuildFileContext(refs)

	assert.NotContains(t, out, "--- src ---")
	assert.Contains(t, out, "--- src/a.py ---")
}

func TestBuildHistory(t *testing.T) {
	msgs := []*models.ChatMessage{
		{Role: models.MessageRoleUser, Content: "hi"},
		{Role: models.MessageRoleAssistant, Content: "hello"},
		{Role: models.MessageRoleSystem, Content: "internal"},
	}

	out := BuildHistory(msgs, "next question")

	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
	assert.Equal(t, "next question", out[2].Content)
}
