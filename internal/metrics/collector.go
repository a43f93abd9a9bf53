// Package metrics implements anonymous, in-process usage metrics.
// IP addresses are one-way hashed before anything touches memory or disk;
// requests accumulate in a bounded buffer and are periodically folded into
// per-day aggregates (unique users, endpoint/status counts, a latency
// summary with reservoir-sampled percentiles, and session duration
// stats), persisted as a single daily_stats.json snapshot. Grounded on
// original_source/src/backend/metrics.py's MetricsCollector.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const dateLayout = "2006-01-02"

// Config tunes the Collector; zero values fall back to defaults.
type Config struct {
	// Salt is the process-wide IP-hashing secret (config.MetricsIPSalt).
	Salt string
	// StoragePath is the JSON snapshot file's path.
	StoragePath string
	// BufferMax caps the in-memory request buffer before a forced flush.
	BufferMax int
	// SessionIdleTimeout ends a session after this much inactivity.
	SessionIdleTimeout time.Duration
	// RetentionDays is how long daily aggregates are kept.
	RetentionDays int
}

func (c Config) withDefaults() Config {
	if c.BufferMax <= 0 {
		c.BufferMax = 1000
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = 30 * time.Minute
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.StoragePath == "" {
		c.StoragePath = "metrics_data/daily_stats.json"
	}
	return c
}

type sessionInfo struct {
	id           string
	userHash     string
	startedAt    time.Time
	lastActivity time.Time
	pageViews    int
	actions      map[string]int
}

type requestMetric struct {
	timestamp  time.Time
	endpoint   string
	method     string
	latencyMs  float64
	statusCode int
	userHash   string
}

type sessionAggregate struct {
	Count         int     `json:"count"`
	TotalDuration float64 `json:"total_duration"` // seconds
	MaxDuration   float64 `json:"max_duration"`   // seconds
}

type dayAggregate struct {
	totalRequests int
	uniqueUsers   map[string]struct{}
	endpoints     map[string]int
	statusCodes   map[string]int
	sessions      sessionAggregate
	latency       *latencyStats
}

func newDayAggregate() *dayAggregate {
	return &dayAggregate{
		uniqueUsers: map[string]struct{}{},
		endpoints:   map[string]int{},
		statusCodes: map[string]int{},
		latency:     newLatencyStats(),
	}
}

// Collector owns every piece of shared mutable metrics state behind one
// mutex, so all buffer writes are serialized.
type Collector struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*sessionInfo
	buffer   []requestMetric
	daily    map[string]*dayAggregate

	cron *cron.Cron
}

// New constructs a Collector and loads any persisted snapshot.
func New(cfg Config) (*Collector, error) {
	cfg = cfg.withDefaults()
	c := &Collector{
		cfg:      cfg,
		sessions: map[string]*sessionInfo{},
		daily:    map[string]*dayAggregate{},
		cron:     cron.New(),
	}
	if err := c.loadStats(); err != nil {
		return nil, err
	}
	return c, nil
}

// Start registers the periodic flush/cleanup (every 5 minutes) and the
// daily retention purge, then starts the cron scheduler.
func (c *Collector) Start() error {
	if _, err := c.cron.AddFunc("@every 5m", c.periodicFlush); err != nil {
		return err
	}
	if _, err := c.cron.AddFunc("@every 24h", c.periodicPurge); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the cron scheduler and flushes/saves one last time.
func (c *Collector) Stop() {
	c.cron.Stop()
	c.periodicFlush()
}

func (c *Collector) periodicFlush() {
	c.mu.Lock()
	c.cleanupSessionsLocked()
	c.flushLocked()
	err := c.saveStatsLocked()
	c.mu.Unlock()
	if err != nil {
		logger.Metrics().Warn().Err(err).Msg("failed to persist metrics snapshot")
	}
}

func (c *Collector) periodicPurge() {
	c.CleanupOldData(c.cfg.RetentionDays)
}

// RecordRequest records one HTTP request's outcome, hashing ip before it
// ever reaches memory.
func (c *Collector) RecordRequest(ip, endpoint, method string, latencyMs float64, statusCode int) {
	userHash := hashIP(c.cfg.Salt, ip)
	m := requestMetric{
		timestamp:  time.Now(),
		endpoint:   endpoint,
		method:     method,
		latencyMs:  latencyMs,
		statusCode: statusCode,
		userHash:   userHash,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(c.buffer, m)
	if len(c.buffer) >= c.cfg.BufferMax {
		c.flushLocked()
	}
}

// GetOrCreateSession returns an existing session id for ip's hash, or
// mints one. sessionID is only used as the new session's id when no
// session for this user hash exists yet: lookup is always by user hash
// first, a caller-supplied id is only a candidate for a new session.
func (c *Collector) GetOrCreateSession(ip, sessionID string) string {
	userHash := hashIP(c.cfg.Salt, ip)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for sid, s := range c.sessions {
		if s.userHash == userHash {
			s.lastActivity = now
			return sid
		}
	}

	newID := sessionID
	if newID == "" {
		newID = uuid.NewString()[:12]
	}
	c.sessions[newID] = &sessionInfo{
		id:           newID,
		userHash:     userHash,
		startedAt:    now,
		lastActivity: now,
		actions:      map[string]int{},
	}
	return newID
}

// RecordPageView increments a session's page view counter.
func (c *Collector) RecordPageView(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	s.lastActivity = time.Now()
	s.pageViews++
}

// RecordAction records a named action against an active session.
func (c *Collector) RecordAction(sessionID, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	s.lastActivity = time.Now()
	s.actions[action]++
}

func (c *Collector) cleanupSessionsLocked() {
	now := time.Now()
	for sid, s := range c.sessions {
		if now.Sub(s.lastActivity) <= c.cfg.SessionIdleTimeout {
			continue
		}
		duration := s.lastActivity.Sub(s.startedAt)
		c.recordSessionEndLocked(s, duration)
		delete(c.sessions, sid)
	}
}

func (c *Collector) recordSessionEndLocked(s *sessionInfo, duration time.Duration) {
	day := c.ensureDayLocked(s.startedAt.Format(dateLayout))
	day.sessions.Count++
	day.sessions.TotalDuration += duration.Seconds()
	if duration.Seconds() > day.sessions.MaxDuration {
		day.sessions.MaxDuration = duration.Seconds()
	}
}

func (c *Collector) ensureDayLocked(dateStr string) *dayAggregate {
	day, ok := c.daily[dateStr]
	if !ok {
		day = newDayAggregate()
		c.daily[dateStr] = day
	}
	return day
}

func (c *Collector) flushLocked() {
	if len(c.buffer) == 0 {
		return
	}
	for _, req := range c.buffer {
		day := c.ensureDayLocked(req.timestamp.Format(dateLayout))
		day.totalRequests++
		day.uniqueUsers[req.userHash] = struct{}{}
		day.endpoints[req.endpoint]++
		day.statusCodes[statusKey(req.statusCode)]++
		day.latency.add(req.latencyMs)
	}
	c.buffer = c.buffer[:0]
}

func statusKey(code int) string {
	return strconv.Itoa(code)
}
