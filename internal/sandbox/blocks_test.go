package sandbox

import (
	"testing"

	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBlocks_SectionAndText(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockSection, Config: models.BlockConfig{Level: "H1", Text: "Summary"}},
		{Type: models.BlockText, Config: models.BlockConfig{Text: "line one\nline two"}},
	}}
	out, err := RenderBlocks(body)
	require.NoError(t, err)
	assert.Contains(t, out, "## H1 Summary")
	assert.Contains(t, out, `line one\nline two`)
}

func TestRenderBlocks_RejectsBadCalloutType(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockCallout, Config: models.BlockConfig{CalloutType: "explosive"}},
	}}
	_, err := RenderBlocks(body)
	assert.Error(t, err)
}

func TestRenderBlocks_RejectsBadColor(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockLinePlot, Config: models.BlockConfig{Color: "red"}},
	}}
	_, err := RenderBlocks(body)
	assert.Error(t, err)
}

func TestRenderBlocks_ClampsHistogramBins(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockHistogram, Config: models.BlockConfig{Bins: 500}},
	}}
	out, err := RenderBlocks(body)
	require.NoError(t, err)
	assert.Contains(t, out, "bins=100")
}

func TestRenderBlocks_RejectsUnsafeCodeBlock(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockCode, Config: models.BlockConfig{Code: "import os\n"}},
	}}
	_, err := RenderBlocks(body)
	assert.Error(t, err)
}

func TestRenderBlocks_SanitizesEmbeddedHTML(t *testing.T) {
	body := models.ScriptBody{Blocks: []models.ScriptBlock{
		{Type: models.BlockText, Config: models.BlockConfig{Text: "<script>alert(1)</script>hello"}},
	}}
	out, err := RenderBlocks(body)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}
