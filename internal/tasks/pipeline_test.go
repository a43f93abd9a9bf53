package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTerminal(t *testing.T, p *Pipeline, id, ownerID string) *taskSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := p.Get(id, ownerID)
		require.NoError(t, err)
		if task.Status == "completed" || task.Status == "failed" {
			return &taskSnapshot{status: string(task.Status), outputPath: task.OutputPath, errMsg: task.Error}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state in time")
	return nil
}

type taskSnapshot struct {
	status     string
	outputPath string
	errMsg     string
}

func TestPipeline_ConvertProducesCSV(t *testing.T) {
	dir := t.TempDir()
	opener := decoder.NewFakeOpener()
	opener.Register("in.mf4", decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Speed"}, Timestamps: []float64{0, 1, 2}, Samples: []float64{1, 2, 3}},
	}))

	p := New(opener, nil, Config{WorkerCap: 2, WorkDir: dir})
	task := p.SubmitConvert("u1", "in.mf4", "", 0)

	snap := waitForTerminal(t, p, task.ID, "u1")
	require.Equal(t, "completed", snap.status, snap.errMsg)
	assert.FileExists(t, snap.outputPath)

	data, err := os.ReadFile(snap.outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Speed")
}

func TestPipeline_ConcatMergesCommonChannels(t *testing.T) {
	dir := t.TempDir()
	opener := decoder.NewFakeOpener()
	opener.Register("a.mf4", decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Speed"}, Timestamps: []float64{0, 1}, Samples: []float64{1, 2}},
		{Channel: decoder.Channel{Group: 0, Index: 1, Name: "OnlyA"}, Timestamps: []float64{0, 1}, Samples: []float64{9, 9}},
	}))
	opener.Register("b.mf4", decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Speed"}, Timestamps: []float64{2, 3}, Samples: []float64{3, 4}},
	}))
	concat := &decoder.FakeConcatenator{Opener: opener}

	p := New(opener, concat, Config{WorkerCap: 2, WorkDir: dir})
	task := p.SubmitConcat("u1", []string{"a.mf4", "b.mf4"})

	snap := waitForTerminal(t, p, task.ID, "u1")
	require.Equal(t, "completed", snap.status, snap.errMsg)

	merged, err := opener.Open(context.Background(), snap.outputPath, "")
	require.NoError(t, err)
	channels, err := merged.Channels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Speed"}, decoder.SortedChannelNames(channels))
}

func TestPipeline_JanitorRemovesExpiredConvertOutput(t *testing.T) {
	dir := t.TempDir()
	opener := decoder.NewFakeOpener()
	opener.Register("in.mf4", decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Speed"}, Timestamps: []float64{0, 1}, Samples: []float64{1, 2}},
	}))

	p := New(opener, nil, Config{WorkerCap: 1, WorkDir: dir, CleanupConvert: time.Millisecond})
	task := p.SubmitConvert("u1", "in.mf4", "", 0)
	snap := waitForTerminal(t, p, task.ID, "u1")
	require.Equal(t, "completed", snap.status)

	time.Sleep(5 * time.Millisecond)
	p.janitorSweep()

	_, err := os.Stat(snap.outputPath)
	assert.True(t, os.IsNotExist(err))
	_, err = p.Get(task.ID, "u1")
	assert.Error(t, err)
}
