package files

import "strings"

// NormalizePath brings user-supplied paths to the canonical stored
// form: forward slashes, no leading slash, no duplicate or trailing
// separators.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")

	cleaned := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}
		cleaned = append(cleaned, part)
	}
	return strings.Join(cleaned, "/")
}

// BaseName returns the last path segment.
func BaseName(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// ParentPath returns everything before the last segment, or "" for
// top-level entries.
func ParentPath(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx]
	}
	return ""
}

// JoinPath joins a parent path and a name, tolerating an empty parent.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
