package tasks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	cols := []column{
		{name: "Speed", dtype: DTypeFloat32, values: []float64{1.23456, 2.5}},
		{name: "Gear", dtype: DTypeUint8, values: []float64{1, 2}},
	}
	require.NoError(t, writeCSV(&buf, []float64{0, 0.1}, cols))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time;Speed;Gear", lines[0])
	assert.Equal(t, "0;1.235;1", lines[1])
	assert.Equal(t, "0.1;2.5;2", lines[2])
}

func TestWriteCSV_ChunksAcrossBoundary(t *testing.T) {
	n := chunkRows + 5
	ts := make([]float64, n)
	vs := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i)
		vs[i] = float64(i)
	}
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, ts, []column{{name: "X", dtype: DTypeFloat32, values: vs}}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, n+1)
}
