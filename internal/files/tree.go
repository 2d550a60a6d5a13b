package files

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dvelchev/codeforge/internal/models"
)

// TreeNode is one entry of the nested file tree the editor sidebar
// renders.
type TreeNode struct {
	*models.ProjectFile
	Children []*TreeNode `json:"children,omitempty"`
}

// BuildTree nests a flat file listing by parent ID. Within each level
// directories come first, then files, both case-insensitively by name.
// Entries pointing at a missing parent surface at the root rather than
// disappearing.
func BuildTree(entries []*models.ProjectFile) []*TreeNode {
	nodes := make(map[uuid.UUID]*TreeNode, len(entries))
	for _, f := range entries {
		nodes[f.ID] = &TreeNode{ProjectFile: f}
	}

	var roots []*TreeNode
	for _, f := range entries {
		node := nodes[f.ID]
		if f.ParentID != nil {
			if parent, ok := nodes[*f.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	var sortLevel func(level []*TreeNode)
	sortLevel = func(level []*TreeNode) {
		sort.SliceStable(level, func(i, j int) bool {
			a, b := level[i], level[j]
			if a.Type != b.Type {
				return a.Type == models.FileTypeDirectory
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		})
		for _, n := range level {
			sortLevel(n.Children)
		}
	}
	sortLevel(roots)

	return roots
}

// RewriteDescendantPath computes a descendant's new path after its
// ancestor directory moved from oldPath to newPath. Only the first
// occurrence is replaced so a repeated segment deeper in the path
// stays intact.
func RewriteDescendantPath(descendantPath, oldPath, newPath string) string {
	return strings.Replace(descendantPath, oldPath, newPath, 1)
}

// MoveCollides reports whether relocating a directory from oldPath to
// newPath would land any descendant on a path in occupied. occupied
// holds the project's paths under newPath that are outside the moving
// subtree.
func MoveCollides(descendantPaths, occupied []string, oldPath, newPath string) bool {
	if len(occupied) == 0 {
		return false
	}
	taken := make(map[string]struct{}, len(occupied))
	for _, p := range occupied {
		taken[p] = struct{}{}
	}
	for _, p := range descendantPaths {
		if _, ok := taken[RewriteDescendantPath(p, oldPath, newPath)]; ok {
			return true
		}
	}
	return false
}
