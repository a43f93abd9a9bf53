package artifacts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	database, err := dbx.NewDatabase(dbx.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	store := storage.New(dbx.NewFileDB(database.DB()), storage.Config{
		Root:                filepath.Join(dir, "storage"),
		DefaultQuotaBytes:   10 * 1024 * 1024,
		MaxFilesPerUser:     1000,
		MaxFilesPerCategory: 200,
	})
	return New(store)
}

func sampleLayoutBody() models.LayoutBody {
	return models.LayoutBody{
		Tabs: []models.LayoutTab{
			{
				Name: "Overview",
				Plots: []models.LayoutPlot{
					{
						Name: "Speed",
						Signals: []models.LayoutSignal{
							{Name: "Speed", Style: models.SignalStyle{Color: "#FF0000", Width: 2, Dash: "solid"}},
						},
					},
				},
			},
		},
	}
}

func TestCreateLayout_RoundTrip(t *testing.T) {
	s := newTestService(t)
	layout, err := s.CreateLayout(context.Background(), "u1", "My Dash", "desc", sampleLayoutBody())
	require.NoError(t, err)
	assert.NotEmpty(t, layout.ID)
	assert.Equal(t, 1, layout.Version)

	got, err := s.GetLayout(context.Background(), layout.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "My Dash", got.Name)
	assert.Equal(t, "Speed", got.Body.Tabs[0].Plots[0].Signals[0].Name)
}

func TestCreateLayout_RejectsTooManyTabs(t *testing.T) {
	s := newTestService(t)
	body := models.LayoutBody{}
	for i := 0; i < 21; i++ {
		body.Tabs = append(body.Tabs, models.LayoutTab{Name: "t"})
	}
	_, err := s.CreateLayout(context.Background(), "u1", "Big", "", body)
	assert.Error(t, err)
}

func TestCreateLayout_RejectsBadColor(t *testing.T) {
	s := newTestService(t)
	body := sampleLayoutBody()
	body.Tabs[0].Plots[0].Signals[0].Style.Color = "red"
	_, err := s.CreateLayout(context.Background(), "u1", "Bad Color", "", body)
	assert.Error(t, err)
}

func TestUpdateLayout_RejectsNonOwner(t *testing.T) {
	s := newTestService(t)
	layout, err := s.CreateLayout(context.Background(), "u1", "Mine", "", sampleLayoutBody())
	require.NoError(t, err)

	_, err = s.UpdateLayout(context.Background(), layout.ID, "u2", "Stolen", "", sampleLayoutBody())
	assert.Error(t, err)
}

func TestUpdateLayout_BumpsVersion(t *testing.T) {
	s := newTestService(t)
	layout, err := s.CreateLayout(context.Background(), "u1", "Mine", "", sampleLayoutBody())
	require.NoError(t, err)

	updated, err := s.UpdateLayout(context.Background(), layout.ID, "u1", "Mine v2", "updated", sampleLayoutBody())
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Mine v2", updated.Name)
}

func TestDeleteLayout_RemovesIt(t *testing.T) {
	s := newTestService(t)
	layout, err := s.CreateLayout(context.Background(), "u1", "Gone", "", sampleLayoutBody())
	require.NoError(t, err)

	require.NoError(t, s.DeleteLayout(context.Background(), layout.ID, "u1"))
	_, err = s.GetLayout(context.Background(), layout.ID, "u1")
	assert.Error(t, err)
}

func sampleScriptBody() models.ScriptBody {
	return models.ScriptBody{
		Blocks: []models.ScriptBlock{
			{Type: models.BlockSection, Config: models.BlockConfig{Level: "H1", Text: "Intro"}},
			{Type: models.BlockText, Config: models.BlockConfig{Text: "hello"}},
			{Type: models.BlockCode, Config: models.BlockConfig{Code: "result = 1 + 1"}},
		},
	}
}

func TestCreateScript_RoundTrip(t *testing.T) {
	s := newTestService(t)
	script, err := s.CreateScript(context.Background(), "u1", "Analysis", "desc", sampleScriptBody())
	require.NoError(t, err)
	assert.NotEmpty(t, script.ID)

	got, err := s.GetScript(context.Background(), script.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, got.Body.Blocks, 3)
}

func TestCreateScript_RejectsUnsafeCode(t *testing.T) {
	s := newTestService(t)
	body := models.ScriptBody{
		Blocks: []models.ScriptBlock{
			{Type: models.BlockCode, Config: models.BlockConfig{Code: "import os\nos.system('ls')"}},
		},
	}
	_, err := s.CreateScript(context.Background(), "u1", "Bad", "", body)
	assert.Error(t, err)
}

func TestCreateScript_RejectsBadCalloutType(t *testing.T) {
	s := newTestService(t)
	body := models.ScriptBody{
		Blocks: []models.ScriptBlock{
			{Type: models.BlockCallout, Config: models.BlockConfig{CalloutType: "critical", Text: "x"}},
		},
	}
	_, err := s.CreateScript(context.Background(), "u1", "Bad", "", body)
	assert.Error(t, err)
}

func TestListLayouts_IncludesOnlyOwnerByDefault(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateLayout(context.Background(), "u1", "Mine", "", sampleLayoutBody())
	require.NoError(t, err)
	_, err = s.CreateLayout(context.Background(), "u2", "Theirs", "", sampleLayoutBody())
	require.NoError(t, err)

	mine, err := s.ListLayouts(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Mine", mine[0].Name)
}

func TestRenderScript_ProducesSource(t *testing.T) {
	s := newTestService(t)
	script, err := s.CreateScript(context.Background(), "u1", "Analysis", "", sampleScriptBody())
	require.NoError(t, err)

	out, err := s.RenderScript(context.Background(), script.ID, "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Intro")
	assert.Contains(t, out, "result = 1 + 1")
}
