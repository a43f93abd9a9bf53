package httpapi

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldtrace/signalstudio/internal/apperr"
)

// resolveWorkPath turns an opaque upload token (the basename saveUpload
// returned) back into a full path under Deps.WorkDir, rejecting anything
// that would escape it — the same traversal concern storage.Store's path
// validation exists for, applied to the pipeline's staging directory.
func (d *Deps) resolveWorkPath(token string) (string, error) {
	if token == "" || strings.ContainsAny(token, "/\\") {
		return "", apperr.Validation("invalid upload token")
	}
	full := filepath.Join(d.WorkDir, token)
	if !strings.HasPrefix(full, filepath.Clean(d.WorkDir)+string(filepath.Separator)) {
		return "", apperr.Validation("invalid upload token")
	}
	if _, err := os.Stat(full); err != nil {
		return "", apperr.NotFound("uploaded file")
	}
	return full, nil
}
