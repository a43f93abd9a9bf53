package storage

import (
	"context"
	"os"

	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/google/uuid"
)

// defaultsNamespace is a fixed namespace UUID used to derive stable ids
// for default assets from their relative path, so re-running
// RegisterDefaults on an unchanged tree is a no-op.
var defaultsNamespace = uuid.MustParse("6f1b1a6e-6e7b-4c9a-9c9e-9f7a2e7e5f2a")

// RegisterDefaults scans {root}/default/{category}/* on startup and
// creates stored_files rows with owner="" idempotently, one per file
// found.
func (s *Store) RegisterDefaults(ctx context.Context) (registered int, err error) {
	for category := range categoryRules {
		dir := s.categoryRoot("", category)
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				continue
			}
			return registered, readErr
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if !validExtension(category, entry.Name()) {
				continue
			}
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			id := uuid.NewSHA1(defaultsNamespace, []byte(string(category)+"/"+entry.Name())).String()
			file := &models.StoredFile{
				ID:           id,
				OwnerID:      "",
				Category:     category,
				Filename:     entry.Name(),
				OriginalName: entry.Name(),
				SizeBytes:    info.Size(),
				UploadedAt:   defaultNow(),
				Description:  "default asset",
			}
			inserted, insErr := s.files.InsertIfAbsent(ctx, file)
			if insErr != nil {
				return registered, insErr
			}
			if inserted {
				registered++
			}
		}
	}
	if registered > 0 {
		logger.Storage().Info().Int("count", registered).Msg("default assets registered")
	}
	return registered, nil
}
