package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/main.py", "src/main.py"},
		{"/src/main.py", "src/main.py"},
		{"src\\utils\\helpers.py", "src/utils/helpers.py"},
		{"src//nested///file.go", "src/nested/file.go"},
		{"src/main.py/", "src/main.py"},
		{"./src/main.py", "src/main.py"},
		{" src / main.py ", "src/main.py"},
		{"", ""},
		{"/", ""},
		{"///", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), "input %q", tt.in)
	}
}

func TestBaseAndParent(t *testing.T) {
	assert.Equal(t, "main.py", BaseName("src/main.py"))
	assert.Equal(t, "main.py", BaseName("main.py"))
	assert.Equal(t, "src", ParentPath("src/main.py"))
	assert.Equal(t, "", ParentPath("main.py"))
	assert.Equal(t, "src/main.py", JoinPath("src", "main.py"))
	assert.Equal(t, "main.py", JoinPath("", "main.py"))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"main.py", "python"},
		{"app.TSX", "typescript"},
		{"index.jsx", "javascript"},
		{"server.go", "go"},
		{"lib.rs", "rust"},
		{"styles.scss", "scss"},
		{"config.yml", "yaml"},
		{"README.md", "markdown"},
		{"Dockerfile", "dockerfile"},
		{"Makefile", "makefile"},
		{"notes.txt", "plaintext"},
		{"binary.exe", ""},
		{"noext", ""},
		{"trailingdot.", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.filename), tt.filename)
	}
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", DetectMimeType("blob.zzz"))
	assert.Contains(t, DetectMimeType("index.html"), "text/html")
	assert.Contains(t, DetectMimeType("data.json"), "application/json")
	assert.Equal(t, "text/plain", DetectMimeType("noext"))
}
