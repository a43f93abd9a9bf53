// Package recording implements a lazy, per-recording in-memory cursor
// that turns a multi-gigabyte binary log into a sub-second first response.
// Channel metadata is listed without samples; samples for a given signal
// are pulled on demand and cached on the session; idle/LRU eviction keeps
// the process-wide session count bounded.
package recording

import (
	"sync"
	"time"

	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// session is the internal state backing one models.SessionInfo. All
// mutation goes through the per-session mutex so list/preload/view calls
// against the same session are serialized.
type session struct {
	mu sync.Mutex

	id           string
	ownerID      string
	path         string
	databasePath string

	rec      decoder.Recording
	listed   bool
	signals  []*models.Signal
	byIndex  map[int]*models.Signal
	timeRange models.TimeRange

	createdAt  time.Time
	lastAccess time.Time
}

func (s *session) touch() {
	s.lastAccess = time.Now()
}

// info builds the public SessionInfo snapshot. Caller must hold s.mu.
func (s *session) info() *models.SessionInfo {
	return &models.SessionInfo{
		ID:          s.id,
		OwnerID:     s.ownerID,
		TimeRange:   s.timeRange,
		SignalCount: len(s.signals),
		CreatedAt:   s.createdAt,
		LastAccess:  s.lastAccess,
	}
}

// summaries builds the metadata-only list_signals response. Caller must
// hold s.mu.
func (s *session) summaries() []models.SignalSummary {
	out := make([]models.SignalSummary, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, models.SignalSummary{
			Index:    sig.Index,
			Name:     sig.Name,
			Unit:     sig.Unit,
			Color:    sig.Color,
			Loaded:   sig.Loaded,
			Computed: sig.Computed,
		})
	}
	return out
}
