package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fieldtrace/signalstudio/internal/apperr"
)

// dayAggregateJSON is the on-disk shape of a dayAggregate, matching the
// original's daily_stats.json layout field-for-field.
type dayAggregateJSON struct {
	TotalRequests int                `json:"total_requests"`
	UniqueUsers   []string           `json:"unique_users"`
	Endpoints     map[string]int     `json:"endpoints"`
	StatusCodes   map[string]int     `json:"status_codes"`
	Sessions      sessionAggregate   `json:"sessions"`
	Latency       LatencySnapshot    `json:"latency"`
}

func (d *dayAggregate) toJSON() dayAggregateJSON {
	users := make([]string, 0, len(d.uniqueUsers))
	for u := range d.uniqueUsers {
		users = append(users, u)
	}
	return dayAggregateJSON{
		TotalRequests: d.totalRequests,
		UniqueUsers:   users,
		Endpoints:     d.endpoints,
		StatusCodes:   d.statusCodes,
		Sessions:      d.sessions,
		Latency:       d.latency.snapshot(),
	}
}

func dayFromJSON(j dayAggregateJSON) *dayAggregate {
	d := newDayAggregate()
	d.totalRequests = j.TotalRequests
	for _, u := range j.UniqueUsers {
		d.uniqueUsers[u] = struct{}{}
	}
	if j.Endpoints != nil {
		d.endpoints = j.Endpoints
	}
	if j.StatusCodes != nil {
		d.statusCodes = j.StatusCodes
	}
	d.sessions = j.Sessions
	d.latency = restoreFromSnapshot(j.Latency)
	return d
}

// saveStatsLocked writes the full daily snapshot to cfg.StoragePath. Must
// be called with mu held.
func (c *Collector) saveStatsLocked() error {
	out := make(map[string]dayAggregateJSON, len(c.daily))
	for date, day := range c.daily {
		out[date] = day.toJSON()
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return apperr.Internal(err)
	}
	if dir := filepath.Dir(c.cfg.StoragePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return apperr.Internal(err)
		}
	}
	return os.WriteFile(c.cfg.StoragePath, b, 0o640)
}

// loadStats reads cfg.StoragePath if present; a missing file is not an
// error: a fresh deployment starts empty.
func (c *Collector) loadStats() error {
	b, err := os.ReadFile(c.cfg.StoragePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	var in map[string]dayAggregateJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return apperr.Internal(err)
	}
	for date, j := range in {
		c.daily[date] = dayFromJSON(j)
	}
	return nil
}
