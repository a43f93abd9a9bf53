package recording

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(n int) *decoder.FakeOpener {
	ts := make([]float64, n)
	v1 := make([]float64, n)
	v2 := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i)
		v1[i] = math.Sin(float64(i) / 10)
		v2[i] = float64(i)
	}
	rec := decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Timestamp", Unit: "s"}, Timestamps: ts, Samples: ts},
		{Channel: decoder.Channel{Group: 0, Index: 1, Name: "EngineSpeed", Unit: "rpm"}, Timestamps: ts, Samples: v1},
		{Channel: decoder.Channel{Group: 0, Index: 2, Name: "VehicleSpeed", Unit: "km/h"}, Timestamps: ts, Samples: v2},
	})
	o := decoder.NewFakeOpener()
	o.Register("rec.mf4", rec)
	return o
}

func TestListSignals_FiltersDenyListAndAssignsColors(t *testing.T) {
	o := buildFixture(1000)
	m := NewManager(o, time.Hour, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "rec.mf4", ""))

	summaries, err := m.ListSignals(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, summaries, 2) // Timestamp filtered out by deny-list
	assert.Equal(t, "EngineSpeed", summaries[0].Name)
	assert.False(t, summaries[0].Loaded)
	assert.NotEmpty(t, summaries[0].Color)
}

func TestView_MatchesEagerClipAndDownsample(t *testing.T) {
	o := buildFixture(3000)
	m := NewManager(o, time.Hour, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "rec.mf4", ""))
	_, err := m.ListSignals(context.Background(), "s1")
	require.NoError(t, err)

	resp, err := m.View(context.Background(), "s1", []int{0}, 100, 500, 200)
	require.NoError(t, err)
	require.Len(t, resp.Signals, 1)
	sv := resp.Signals[0]
	assert.LessOrEqual(t, sv.ReturnedPoints, 200)
	assert.False(t, sv.IsComplete)
	assert.Equal(t, 401, sv.OriginalPoints) // [100,500] inclusive of both ends
}

func TestPreload_InterpolatesNonFinite(t *testing.T) {
	ts := []float64{0, 1, 2, 3, 4}
	vals := []float64{1, math.NaN(), math.NaN(), 4, 5}
	rec := decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "X"}, Timestamps: ts, Samples: vals},
	})
	o := decoder.NewFakeOpener()
	o.Register("r.mf4", rec)
	m := NewManager(o, time.Hour, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "r.mf4", ""))
	_, err := m.ListSignals(context.Background(), "s1")
	require.NoError(t, err)

	sig, err := m.Preload(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.True(t, sig.Loaded)
	assert.InDelta(t, 2.0, sig.Values[1], 1e-9)
	assert.InDelta(t, 3.0, sig.Values[2], 1e-9)

	// Idempotent.
	sig2, err := m.Preload(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.True(t, sig2.Loaded)
}

func TestPreload_AllNonFiniteFails(t *testing.T) {
	ts := []float64{0, 1, 2}
	vals := []float64{math.NaN(), math.Inf(1), math.NaN()}
	rec := decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "X"}, Timestamps: ts, Samples: vals},
	})
	o := decoder.NewFakeOpener()
	o.Register("r.mf4", rec)
	m := NewManager(o, time.Hour, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "r.mf4", ""))
	_, err := m.ListSignals(context.Background(), "s1")
	require.NoError(t, err)

	_, err = m.Preload(context.Background(), "s1", 0)
	assert.Error(t, err)
}

func TestEvict_ClosesIdleSessions(t *testing.T) {
	o := buildFixture(10)
	m := NewManager(o, time.Millisecond, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "rec.mf4", ""))
	_, err := m.ListSignals(context.Background(), "s1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	m.Evict()
	assert.Equal(t, 0, m.Count())
}

func TestEvict_CapsLiveSessionCount(t *testing.T) {
	o := decoder.NewFakeOpener()
	m := NewManager(o, time.Hour, 2, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "rec.mf4", ""))
	time.Sleep(time.Millisecond)
	require.NoError(t, m.CreateSession("s2", "u1", "rec.mf4", ""))
	time.Sleep(time.Millisecond)
	require.NoError(t, m.CreateSession("s3", "u1", "rec.mf4", ""))
	assert.LessOrEqual(t, m.Count(), 2)
}

func TestOpenFailure_IsUserSafeDecodeError(t *testing.T) {
	o := decoder.NewFakeOpener()
	o.FailOn("bad.mf4")
	m := NewManager(o, time.Hour, 50, nil)
	require.NoError(t, m.CreateSession("s1", "u1", "bad.mf4", ""))
	_, err := m.ListSignals(context.Background(), "s1")
	assert.Error(t, err)
}
