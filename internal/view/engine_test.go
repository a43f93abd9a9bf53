package view

import (
	"context"
	"testing"

	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubViewer struct {
	resp *models.ViewResponse
	err  error
	gotMaxPoints int
}

func (s *stubViewer) View(ctx context.Context, sessionID string, indices []int, t0, t1 float64, maxPoints int) (*models.ViewResponse, error) {
	s.gotMaxPoints = maxPoints
	return s.resp, s.err
}

func TestRender_ClampsMaxPoints(t *testing.T) {
	stub := &stubViewer{resp: &models.ViewResponse{Signals: []models.SignalView{{Name: "a"}}}}
	e := New(stub)

	_, err := e.Render(context.Background(), "s1", []int{0}, 0, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 100, stub.gotMaxPoints)

	_, err = e.Render(context.Background(), "s1", []int{0}, 0, 10, 999999)
	require.NoError(t, err)
	assert.Equal(t, 10000, stub.gotMaxPoints)
}

func TestRender_EmptyResultIs404(t *testing.T) {
	stub := &stubViewer{resp: &models.ViewResponse{}}
	e := New(stub)
	_, err := e.Render(context.Background(), "s1", []int{0}, 0, 10, 500)
	require.Error(t, err)
}

func TestRender_RejectsTooManySignals(t *testing.T) {
	stub := &stubViewer{}
	e := New(stub)
	indices := make([]int, 51)
	_, err := e.Render(context.Background(), "s1", indices, 0, 10, 500)
	require.Error(t, err)
}

func TestRender_RejectsEmptySignalList(t *testing.T) {
	stub := &stubViewer{}
	e := New(stub)
	_, err := e.Render(context.Background(), "s1", nil, 0, 10, 500)
	require.Error(t, err)
}
