package metrics

import (
	"sort"
	"time"

	"github.com/fieldtrace/signalstudio/internal/logger"
)

// CurrentStatsSnapshot answers "what's happening right now": active
// sessions plus today's running totals.
type CurrentStatsSnapshot struct {
	ActiveSessions  int             `json:"active_sessions"`
	RequestsToday   int             `json:"requests_today"`
	UniqueUsersToday int            `json:"unique_users_today"`
	Latency         LatencySnapshot `json:"latency"`
}

// EndpointCount is one entry of a DailyReportSnapshot's top-endpoints list.
type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

// DailyReportSnapshot is a single day's full aggregate, flushed and
// rendered on demand.
type DailyReportSnapshot struct {
	Date            string          `json:"date"`
	TotalRequests   int             `json:"total_requests"`
	UniqueUsers     int             `json:"unique_users"`
	TopEndpoints    []EndpointCount `json:"top_endpoints"`
	StatusCodes     map[string]int  `json:"status_codes"`
	Sessions        sessionAggregate `json:"sessions"`
	Latency         LatencySnapshot `json:"latency"`
}

// WeeklySummarySnapshot aggregates the trailing 7 days ending on the
// given date, one DailyReportSnapshot per day (oldest first).
type WeeklySummarySnapshot struct {
	EndDate string                `json:"end_date"`
	Days    []DailyReportSnapshot `json:"days"`
}

// CurrentStats reports live totals for "today" (server-local calendar date).
func (c *Collector) CurrentStats() CurrentStatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := time.Now().Format(dateLayout)
	day := c.daily[today]

	snap := CurrentStatsSnapshot{ActiveSessions: len(c.sessions)}
	users := map[string]struct{}{}
	if day != nil {
		snap.RequestsToday = day.totalRequests
		for u := range day.uniqueUsers {
			users[u] = struct{}{}
		}
		snap.Latency = day.latency.snapshot()
	}
	// Requests still sitting in the unflushed buffer for today count
	// towards "right now" too.
	for _, req := range c.buffer {
		if req.timestamp.Format(dateLayout) != today {
			continue
		}
		snap.RequestsToday++
		users[req.userHash] = struct{}{}
	}
	snap.UniqueUsersToday = len(users)
	return snap
}

// DailyReport flushes the buffer, then renders dateStr's full aggregate.
func (c *Collector) DailyReport(dateStr string) DailyReportSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	return c.dailyReportLocked(dateStr)
}

func (c *Collector) dailyReportLocked(dateStr string) DailyReportSnapshot {
	day := c.daily[dateStr]
	if day == nil {
		return DailyReportSnapshot{Date: dateStr, StatusCodes: map[string]int{}}
	}

	endpoints := make([]EndpointCount, 0, len(day.endpoints))
	for ep, n := range day.endpoints {
		endpoints = append(endpoints, EndpointCount{Endpoint: ep, Count: n})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Count != endpoints[j].Count {
			return endpoints[i].Count > endpoints[j].Count
		}
		return endpoints[i].Endpoint < endpoints[j].Endpoint
	})
	if len(endpoints) > 10 {
		endpoints = endpoints[:10]
	}

	return DailyReportSnapshot{
		Date:          dateStr,
		TotalRequests: day.totalRequests,
		UniqueUsers:   len(day.uniqueUsers),
		TopEndpoints:  endpoints,
		StatusCodes:   day.statusCodes,
		Sessions:      day.sessions,
		Latency:       day.latency.snapshot(),
	}
}

// WeeklySummary renders the 7 days ending on endDate (inclusive), oldest
// first.
func (c *Collector) WeeklySummary(endDate time.Time) WeeklySummarySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()

	summary := WeeklySummarySnapshot{EndDate: endDate.Format(dateLayout)}
	for i := 6; i >= 0; i-- {
		day := endDate.AddDate(0, 0, -i)
		summary.Days = append(summary.Days, c.dailyReportLocked(day.Format(dateLayout)))
	}
	return summary
}

// CleanupOldData drops daily aggregates older than keepDays and persists
// the result.
func (c *Collector) CleanupOldData(keepDays int) {
	if keepDays <= 0 {
		keepDays = c.cfg.RetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays).Format(dateLayout)

	c.mu.Lock()
	for date := range c.daily {
		if date < cutoff {
			delete(c.daily, date)
		}
	}
	err := c.saveStatsLocked()
	c.mu.Unlock()

	if err != nil {
		logger.Metrics().Warn().Err(err).Msg("failed to persist metrics snapshot after cleanup")
	}
}
