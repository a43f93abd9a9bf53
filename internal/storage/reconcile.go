package storage

import (
	"context"
	"os"

	"github.com/fieldtrace/signalstudio/internal/logger"
)

// ReconcileOrphans iterates rows for ownerID (use "" for the process-
// global default set) and deletes rows whose backing file no longer
// exists on disk. Called at startup and, best-effort, after a successful
// login — never blocks either caller on error.
func (s *Store) ReconcileOrphans(ctx context.Context, ownerID string) (removed int, err error) {
	files, err := s.files.ListAllForReconciliation(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		path, perr := s.resolvePath(f.OwnerID, f.Category, f.Filename)
		if perr != nil {
			continue
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if delErr := s.files.DeleteByID(ctx, f.ID); delErr == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		logger.Storage().Info().Str("owner", ownerID).Int("removed", removed).Msg("orphaned file rows reconciled")
	}
	return removed, nil
}

// ReconcileAll runs ReconcileOrphans for the default tree and every owner
// with at least one file — the startup sweep.
func (s *Store) ReconcileAll(ctx context.Context) (removed int, err error) {
	n, err := s.ReconcileOrphans(ctx, "")
	if err != nil {
		return removed, err
	}
	removed += n

	owners, err := s.files.ListAllOwnerIDs(ctx)
	if err != nil {
		return removed, err
	}
	for _, owner := range owners {
		n, err := s.ReconcileOrphans(ctx, owner)
		if err != nil {
			logger.Storage().Warn().Err(err).Str("owner", owner).Msg("orphan reconciliation failed for owner")
			continue
		}
		removed += n
	}
	return removed, nil
}
