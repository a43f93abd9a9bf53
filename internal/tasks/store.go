// Package tasks implements the background task pipeline running
// convert (mf4→csv) and concatenate (mf4+mf4→mf4) jobs. Each task spawns
// its own goroutine, bounded by a worker-count cap, and reports
// monotonically increasing progress under a per-task-table mutex.
package tasks

import (
	"sync"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/google/uuid"
)

// store is the in-memory task table; every mutation goes through a
// single mutex, keeping per-task status transitions sequential without
// a DB round-trip per progress tick.
type store struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

func newStore() *store {
	return &store{tasks: make(map[string]*models.Task)}
}

func (s *store) create(kind models.TaskKind, ownerID string, inputs []string, params map[string]any) *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		OwnerID:    ownerID,
		InputPaths: inputs,
		Parameters: params,
		Status:     models.TaskPending,
		CreatedAt:  time.Now(),
	}
	s.tasks[t.ID] = t
	return t
}

func (s *store) get(id, ownerID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, apperr.NotFound("task")
	}
	return cloneTask(t), nil
}

func (s *store) update(id string, fn func(t *models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		fn(t)
	}
}

// progress sets status=processing and a monotone percent/message; a
// lower percent than already recorded is ignored so a racing goroutine
// can never regress the observed progress.
func (s *store) progress(id string, percent int, message string) {
	s.update(id, func(t *models.Task) {
		if t.Status == models.TaskPending {
			t.Status = models.TaskProcessing
		}
		if percent > t.Progress {
			t.Progress = percent
		}
		t.Message = message
	})
}

func (s *store) complete(id, outputPath string) {
	now := time.Now()
	s.update(id, func(t *models.Task) {
		t.Status = models.TaskCompleted
		t.Progress = 100
		t.Message = "Done"
		t.OutputPath = outputPath
		t.CompletedAt = &now
	})
}

func (s *store) fail(id string, err error) {
	now := time.Now()
	s.update(id, func(t *models.Task) {
		t.Status = models.TaskFailed
		t.Message = "Failed"
		t.Error = err.Error()
		t.CompletedAt = &now
	})
}

// purgeOlderThan deletes terminal tasks whose CompletedAt predates the
// cutoff, returning their input/output paths for the janitor to unlink.
func (s *store) purgeOlderThan(kind models.TaskKind, cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for id, t := range s.tasks {
		if t.Kind != kind || t.CompletedAt == nil || t.CompletedAt.After(cutoff) {
			continue
		}
		paths = append(paths, t.InputPaths...)
		if t.OutputPath != "" {
			paths = append(paths, t.OutputPath)
		}
		if dbc, ok := t.Parameters["dbcPath"].(string); ok && dbc != "" {
			paths = append(paths, dbc)
		}
		delete(s.tasks, id)
	}
	return paths
}

func cloneTask(t *models.Task) *models.Task {
	cp := *t
	return &cp
}
