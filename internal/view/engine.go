// Package view implements the request-level orchestration around the
// session manager's per-session view operation — enforcing the
// signal-count and max_points caps, and turning an empty result into a 404.
package view

import (
	"context"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

const (
	maxSignalsPerRequest = 50
	minMaxPoints         = 100
	maxMaxPoints         = 10000
)

// SessionViewer is the subset of internal/recording.Manager the view
// engine depends on.
type SessionViewer interface {
	View(ctx context.Context, sessionID string, indices []int, t0, t1 float64, maxPoints int) (*models.ViewResponse, error)
}

// Engine renders view requests.
type Engine struct {
	sessions SessionViewer
}

// New constructs an Engine over a session manager.
func New(sessions SessionViewer) *Engine {
	return &Engine{sessions: sessions}
}

// ClampMaxPoints clamps a requested max_points into [100, 10000].
func ClampMaxPoints(requested int) int {
	if requested < minMaxPoints {
		return minMaxPoints
	}
	if requested > maxMaxPoints {
		return maxMaxPoints
	}
	return requested
}

// Render validates the request shape against the caps and returns the
// aggregated view response, or a NotFound error when no signal has any
// sample in range.
func (e *Engine) Render(ctx context.Context, sessionID string, indices []int, t0, t1 float64, maxPoints int) (*models.ViewResponse, error) {
	if len(indices) == 0 {
		return nil, apperr.Validation("at least one signal must be requested")
	}
	if len(indices) > maxSignalsPerRequest {
		return nil, apperr.Validation("too many signals requested (max 50)")
	}
	if t0 > t1 {
		return nil, apperr.Validation("start must not be after end")
	}

	resp, err := e.sessions.View(ctx, sessionID, indices, t0, t1, ClampMaxPoints(maxPoints))
	if err != nil {
		return nil, err
	}
	if len(resp.Signals) == 0 {
		return nil, apperr.NotFound("signal data in the requested range")
	}
	return resp, nil
}
