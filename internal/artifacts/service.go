// Package artifacts implements validated CRUD for layouts and
// scripts, the two JSON artifact families a user builds on top of their
// recordings. Both are persisted through the file store rather than
// a second storage mechanism, so ownership rules, per-category size caps,
// and quota accounting come from internal/storage for free: the two
// share the File Store's depth and size limits.
package artifacts

import (
	"github.com/fieldtrace/signalstudio/internal/storage"
)

// Service validates and persists layouts and scripts on top of a Store.
type Service struct {
	store *storage.Store
}

// New constructs a Service backed by store.
func New(store *storage.Store) *Service {
	return &Service{store: store}
}
