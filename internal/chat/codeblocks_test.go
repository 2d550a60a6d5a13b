package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlocks(t *testing.T) {
	content := "Here you go:\n```python\nprint(\"hi\")\n```\nand a snippet:\n```\nplain text\n```"

	blocks := ExtractCodeBlocks(content)

	require.Len(t, blocks, 2)
	assert.Equal(t, "python", blocks[0].Language)
	assert.Equal(t, "print(\"hi\")", blocks[0].Code)
	assert.Equal(t, "plaintext", blocks[1].Language)
	assert.Equal(t, "plain text", blocks[1].Code)
}

func TestExtractCodeBlocksTrimsWhitespace(t *testing.T) {
	content := "```python\n\n  print(1)\n\n```"

	blocks := ExtractCodeBlocks(content)

	require.Len(t, blocks, 1)
	assert.Equal(t, "print(1)", blocks[0].Code)
}

func TestExtractCodeBlocksNone(t *testing.T) {
	assert.Nil(t, ExtractCodeBlocks("no code here"))
	assert.Nil(t, ExtractCodeBlocks("unclosed ```python\nprint(1)"))
}

func TestExtractCodeBlocksMultiline(t *testing.T) {
	content := "```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```"

	blocks := ExtractCodeBlocks(content)

	require.Len(t, blocks, 1)
	assert.Equal(t, "go", blocks[0].Language)
	assert.Contains(t, blocks[0].Code, "func main()")
}
