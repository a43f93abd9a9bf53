package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Config{
		Salt:        "test-salt",
		StoragePath: filepath.Join(dir, "daily_stats.json"),
	})
	require.NoError(t, err)
	return c
}

func TestHashIP_IsStableAndOpaque(t *testing.T) {
	a := hashIP("salt", "10.0.0.1")
	b := hashIP("salt", "10.0.0.1")
	c := hashIP("salt", "10.0.0.2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "10.0.0.1")
}

func TestRecordRequest_AccumulatesIntoDailyStats(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRequest("1.2.3.4", "/api/sources", "GET", 12.5, 200)
	c.RecordRequest("1.2.3.4", "/api/sources", "GET", 8.0, 200)
	c.RecordRequest("5.6.7.8", "/api/sources", "GET", 40.0, 500)

	stats := c.CurrentStats()
	assert.Equal(t, 3, stats.RequestsToday)
	assert.Equal(t, 2, stats.UniqueUsersToday)

	today := time.Now().Format(dateLayout)
	report := c.DailyReport(today)
	assert.Equal(t, 3, report.TotalRequests)
	require.Len(t, report.TopEndpoints, 1)
	assert.Equal(t, "/api/sources", report.TopEndpoints[0].Endpoint)
	assert.Equal(t, 3, report.TopEndpoints[0].Count)
	assert.Equal(t, 2, report.StatusCodes["200"])
	assert.Equal(t, 1, report.StatusCodes["500"])
}

func TestRecordRequest_FlushesAtBufferCap(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Config{Salt: "s", StoragePath: filepath.Join(dir, "stats.json"), BufferMax: 2})
	require.NoError(t, err)

	c.RecordRequest("1.1.1.1", "/x", "GET", 1, 200)
	assert.Len(t, c.buffer, 1)
	c.RecordRequest("1.1.1.1", "/x", "GET", 1, 200)
	assert.Len(t, c.buffer, 0)
}

func TestGetOrCreateSession_ReusesExistingForSameIP(t *testing.T) {
	c := newTestCollector(t)
	first := c.GetOrCreateSession("9.9.9.9", "")
	second := c.GetOrCreateSession("9.9.9.9", "")
	assert.Equal(t, first, second)

	other := c.GetOrCreateSession("8.8.8.8", "")
	assert.NotEqual(t, first, other)
}

func TestCleanupSessions_EndsIdleSessionsIntoDailyAggregate(t *testing.T) {
	c := newTestCollector(t)
	c.cfg.SessionIdleTimeout = 0
	sid := c.GetOrCreateSession("1.1.1.1", "")
	require.Contains(t, c.sessions, sid)

	c.mu.Lock()
	c.cleanupSessionsLocked()
	c.mu.Unlock()

	assert.NotContains(t, c.sessions, sid)
	today := time.Now().Format(dateLayout)
	report := c.DailyReport(today)
	assert.Equal(t, 1, report.Sessions.Count)
}

func TestRecordAction_IgnoresUnknownSession(t *testing.T) {
	c := newTestCollector(t)
	c.RecordAction("does-not-exist", "click")
}

func TestSaveAndLoadStats_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daily_stats.json")
	c, err := New(Config{Salt: "s", StoragePath: path})
	require.NoError(t, err)
	c.RecordRequest("1.2.3.4", "/a", "GET", 15, 200)
	c.Stop()

	reloaded, err := New(Config{Salt: "s", StoragePath: path})
	require.NoError(t, err)
	today := time.Now().Format(dateLayout)
	report := reloaded.DailyReport(today)
	assert.Equal(t, 1, report.TotalRequests)
	assert.Equal(t, 1, report.Latency.Count)
}

func TestCleanupOldData_DropsDaysOutsideRetention(t *testing.T) {
	c := newTestCollector(t)
	old := time.Now().AddDate(0, 0, -90).Format(dateLayout)
	c.mu.Lock()
	c.ensureDayLocked(old).totalRequests = 5
	c.mu.Unlock()

	c.CleanupOldData(30)

	c.mu.Lock()
	_, ok := c.daily[old]
	c.mu.Unlock()
	assert.False(t, ok)
}

func TestWeeklySummary_Covers7DaysEndingOnGivenDate(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRequest("1.2.3.4", "/a", "GET", 5, 200)

	summary := c.WeeklySummary(time.Now())
	assert.Len(t, summary.Days, 7)
	assert.Equal(t, summary.Days[6].TotalRequests, 1)
}
