package files

import (
	"mime"
	"strings"
)

var extLanguages = map[string]string{
	"py":         "python",
	"js":         "javascript",
	"mjs":        "javascript",
	"cjs":        "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"java":       "java",
	"c":          "c",
	"h":          "c",
	"cpp":        "cpp",
	"cc":         "cpp",
	"cxx":        "cpp",
	"hpp":        "cpp",
	"cs":         "csharp",
	"go":         "go",
	"rs":         "rust",
	"rb":         "ruby",
	"php":        "php",
	"swift":      "swift",
	"kt":         "kotlin",
	"scala":      "scala",
	"r":          "r",
	"sql":        "sql",
	"html":       "html",
	"htm":        "html",
	"css":        "css",
	"scss":       "scss",
	"less":       "less",
	"json":       "json",
	"xml":        "xml",
	"yaml":       "yaml",
	"yml":        "yaml",
	"toml":       "toml",
	"md":         "markdown",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"vue":        "vue",
	"svelte":     "svelte",
	"dockerfile": "dockerfile",
	"txt":        "plaintext",
}

// DetectLanguage maps a filename to the editor language identifier, or
// "" when the extension is unknown.
func DetectLanguage(filename string) string {
	name := strings.ToLower(BaseName(filename))
	if name == "dockerfile" || name == "makefile" {
		if name == "makefile" {
			return "makefile"
		}
		return "dockerfile"
	}

	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return extLanguages[name[idx+1:]]
}

// DetectMimeType guesses a MIME type from the filename extension,
// defaulting to text/plain for source files.
func DetectMimeType(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx >= 0 {
		if mt := mime.TypeByExtension(filename[idx:]); mt != "" {
			return mt
		}
	}
	return "text/plain"
}
