package chat

import (
	"regexp"
	"strings"

	"github.com/dvelchev/codeforge/internal/models"
)

var codeBlockRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")

// ExtractCodeBlocks pulls every fenced code block out of an assistant
// reply. Blocks without a language tag come back as plaintext.
func ExtractCodeBlocks(content string) []models.CodeBlock {
	matches := codeBlockRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	blocks := make([]models.CodeBlock, 0, len(matches))
	for _, m := range matches {
		language := m[1]
		if language == "" {
			language = "plaintext"
		}
		blocks = append(blocks, models.CodeBlock{
			Language: language,
			Code:     strings.TrimSpace(m[2]),
		})
	}
	return blocks
}
