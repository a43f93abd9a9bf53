package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fieldtrace/signalstudio/internal/models"
)

// categoryRoot returns the directory a category's files live under for a
// given owner ("" ⇒ the process-global default tree), per the
// on-disk layout.
func (s *Store) categoryRoot(ownerID string, category models.Category) string {
	if ownerID == "" {
		return filepath.Join(s.root, "default", string(category))
	}
	return filepath.Join(s.root, "users", ownerID, string(category))
}

// resolvePath builds the on-disk path for (owner, category, filename) and
// verifies it canonicalizes under that category's root — rejecting any
// path-traversal attempt, never with a 500.
func (s *Store) resolvePath(ownerID string, category models.Category, filename string) (string, error) {
	root := s.categoryRoot(ownerID, category)
	candidate := filepath.Join(root, filename)

	cleanRoot := filepath.Clean(root)
	cleanCandidate := filepath.Clean(candidate)

	if cleanCandidate != cleanRoot && !strings.HasPrefix(cleanCandidate, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return "", fmt.Errorf("invalid path")
	}
	return cleanCandidate, nil
}
