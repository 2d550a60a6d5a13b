package chat

import (
	"fmt"
	"strings"

	"github.com/dvelchev/codeforge/internal/ai"
	"github.com/dvelchev/codeforge/internal/models"
)

const (
	// history and file context caps keep the prompt inside the model's
	// context window
	historyLimit    = 20
	maxContextFiles = 5
	maxFileExcerpt  = 2000
)

// BuildSystemPrompt describes the project to the model, appending the
// referenced files as context.
func BuildSystemPrompt(project *models.Project, fileContext string) string {
	var b strings.Builder
	b.WriteString("You are an expert AI coding assistant working inside the project ")
	fmt.Fprintf(&b, "%q.\n", project.Name)
	fmt.Fprintf(&b, "Primary language: %s.\n", project.Language)
	if project.Framework != nil && *project.Framework != "" {
		fmt.Fprintf(&b, "Framework: %s.\n", *project.Framework)
	}
	if project.Description != nil && *project.Description != "" {
		fmt.Fprintf(&b, "Project description: %s\n", *project.Description)
	}
	b.WriteString("Give concise, actionable answers. Put code in fenced code blocks tagged with the language.\n")

	if fileContext != "" {
		b.WriteString("\nThe user attached these project files for context:\n")
		b.WriteString(fileContext)
	}
	return b.String()
}

// BuildFileContext renders up to maxContextFiles referenced files,
// truncating each to maxFileExcerpt characters.
func BuildFileContext(refs []*models.ProjectFile) string {
	var b strings.Builder
	count := 0
	for _, f := range refs {
		if count >= maxContextFiles {
			break
		}
		if f.Type != models.FileTypeFile || f.Content == nil {
			continue
		}

		content := *f.Content
		truncated := false
		if len(content) > maxFileExcerpt {
			content = content[:maxFileExcerpt]
			truncated = true
		}

		language := "plaintext"
		if f.Language != nil {
			language = *f.Language
		}

		fmt.Fprintf(&b, "\n--- %s ---\n```%s\n%s\n```\n", f.Path, language, content)
		if truncated {
			b.WriteString("(file truncated)\n")
		}
		count++
	}
	return b.String()
}

// BuildHistory converts stored messages into model turns, dropping
// system rows.
func BuildHistory(messages []*models.ChatMessage, newContent string) []ai.Message {
	out := make([]ai.Message, 0, len(messages)+1)
	for _, m := range messages {
		if m.Role == models.MessageRoleSystem {
			continue
		}
		out = append(out, ai.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	out = append(out, ai.Message{Role: "user", Content: newContent})
	return out
}
