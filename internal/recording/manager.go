package recording

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/colorutil"
	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/fieldtrace/signalstudio/internal/downsample"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// defaultDenyPatterns filters obvious time/timestamp/auxiliary channels
// out of the signal listing.
var defaultDenyPatterns = []string{
	`(?i)^time$`, `(?i)time_?stamp`, `(?i)^t$`, `(?i)^aux`, `(?i)^crc$`, `(?i)^counter$`,
}

// Manager is the process-wide lazy session manager: a map of open
// sessions guarded by a map-level mutex for insert/evict, with a
// per-session mutex guarding list/preload/view operations on each entry.
type Manager struct {
	opener decoder.Opener

	idleTimeout time.Duration
	maxSessions int
	deny        []*regexp.Regexp

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager constructs a Manager. denyNames overrides the default
// name-pattern deny-list when non-empty.
func NewManager(opener decoder.Opener, idleTimeout time.Duration, maxSessions int, denyNames []string) *Manager {
	patterns := defaultDenyPatterns
	if len(denyNames) > 0 {
		patterns = denyNames
	}
	deny := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			deny = append(deny, re)
		}
	}
	return &Manager{
		opener:      opener,
		idleTimeout: idleTimeout,
		maxSessions: maxSessions,
		deny:        deny,
		sessions:    make(map[string]*session),
	}
}

func (m *Manager) isDenied(name string) bool {
	for _, re := range m.deny {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// CreateSession registers an unopened recording. No I/O beyond the map
// insert; the file itself is opened lazily on the first ListSignals call.
func (m *Manager) CreateSession(id, ownerID, path, databasePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-activating under an existing id (the Sources flow keys the
	// implicit session by user id) must release the old handle first.
	if old, ok := m.sessions[id]; ok {
		old.mu.Lock()
		if old.rec != nil {
			_ = old.rec.Close()
		}
		old.mu.Unlock()
	}

	m.sessions[id] = &session{
		id:           id,
		ownerID:      ownerID,
		path:         path,
		databasePath: databasePath,
		byIndex:      make(map[int]*models.Signal),
		createdAt:    time.Now(),
		lastAccess:   time.Now(),
	}
	m.evictLocked()
	return nil
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("recording session")
	}
	return s, nil
}

// GetInfo returns the public SessionInfo snapshot for a session.
func (m *Manager) GetInfo(id string) (*models.SessionInfo, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), nil
}

// DeleteSession closes and removes a session, releasing its decoder
// handle.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return apperr.NotFound("recording session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		_ = s.rec.Close()
	}
	return nil
}

// ListSignals opens the recording on first call (applying bus-decode when
// a database path is set), walks the channel catalog, and builds the
// signal list without pulling samples, deriving the global time range from
// exactly one representative channel. Subsequent calls return the cached
// list.
func (m *Manager) ListSignals(ctx context.Context, id string) ([]models.SignalSummary, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.listed {
		return s.summaries(), nil
	}

	rec, err := m.opener.Open(ctx, s.path, s.databasePath)
	if err != nil {
		logger.Recording().Warn().Err(err).Str("session", id).Msg("failed to open recording")
		return nil, apperr.Decode(err)
	}
	s.rec = rec

	channels, err := rec.Channels(ctx)
	if err != nil {
		return nil, apperr.Decode(err)
	}

	signals := make([]*models.Signal, 0, len(channels))
	for _, ch := range channels {
		if m.isDenied(ch.Name) {
			continue
		}
		sig := &models.Signal{
			Index:        len(signals),
			Name:         ch.Name,
			Unit:         ch.Unit,
			Color:        colorutil.ForIndex(len(signals)),
			Group:        ch.Group,
			ChannelIndex: ch.Index,
		}
		signals = append(signals, sig)
		s.byIndex[sig.Index] = sig
	}
	s.signals = signals

	if len(signals) > 0 {
		tMin, tMax, err := m.representativeRange(ctx, s, signals[0])
		if err != nil {
			logger.Recording().Warn().Err(err).Str("session", id).Msg("failed to derive time range")
		} else {
			s.timeRange = models.TimeRange{Min: tMin, Max: tMax}
		}
	}

	s.listed = true
	return s.summaries(), nil
}

// representativeRange loads exactly one channel's timestamps to derive a
// cheap global [t_min, t_max] for the session.
func (m *Manager) representativeRange(ctx context.Context, s *session, sig *models.Signal) (float64, float64, error) {
	ts, _, err := s.rec.Get(ctx, sig.Group, sig.ChannelIndex)
	if err != nil {
		return 0, 0, err
	}
	if len(ts) == 0 {
		return 0, 0, fmt.Errorf("representative channel has no samples")
	}
	return ts[0], ts[len(ts)-1], nil
}

// Preload loads one signal's (timestamps, values), interpolating
// non-finite samples over their finite neighborhood. Idempotent: an
// already-loaded signal returns immediately.
func (m *Manager) Preload(ctx context.Context, id string, index int) (*models.Signal, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	sig, ok := s.byIndex[index]
	if !ok {
		return nil, apperr.NotFound("signal")
	}
	if sig.Loaded {
		return sig, nil
	}
	return m.preloadLocked(ctx, s, sig)
}

// preloadLocked does the actual load; caller must hold s.mu.
func (m *Manager) preloadLocked(ctx context.Context, s *session, sig *models.Signal) (*models.Signal, error) {
	if sig.Computed {
		return nil, apperr.Validation("computed signals cannot be reloaded from the recording")
	}
	ts, vals, err := s.rec.Get(ctx, sig.Group, sig.ChannelIndex)
	if err != nil {
		// Per-channel decode failures are recoverable: the signal is
		// skipped, never fatal to the session.
		logger.Recording().Warn().Err(err).Str("signal", sig.Name).Msg("signal load failed, skipping")
		return nil, apperr.Decode(err)
	}

	clean, err := interpolateFinite(ts, vals)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("signal %q has no finite samples", sig.Name))
	}

	sig.Timestamps = ts
	sig.Values = clean
	sig.Loaded = true
	return sig, nil
}

// AddComputedSignal registers a derived signal on a session. The
// signal must already be fully loaded (computed values are produced
// eagerly at creation time).
func (m *Manager) AddComputedSignal(id string, sig *models.Signal) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sig.Index = len(s.signals)
	sig.Computed = true
	sig.Loaded = true
	s.signals = append(s.signals, sig)
	s.byIndex[sig.Index] = sig
	return nil
}

// DeleteComputedSignal removes a computed signal by name. Only computed
// signals may be deleted through this path.
func (m *Manager) DeleteComputedSignal(id, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sig := range s.signals {
		if sig.Name == name {
			if !sig.Computed {
				return apperr.Forbidden("only computed signals can be deleted")
			}
			s.signals = append(s.signals[:i], s.signals[i+1:]...)
			delete(s.byIndex, sig.Index)
			return nil
		}
	}
	return apperr.NotFound("computed signal")
}

// Signal returns the live models.Signal for a session/index pair, used by
// internal/compute to resolve formula variable bindings.
func (m *Manager) Signal(id string, index int) (*models.Signal, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.byIndex[index]
	if !ok {
		return nil, apperr.NotFound("signal")
	}
	return sig, nil
}

// SignalByName resolves a signal within a session by name.
func (m *Manager) SignalByName(id, name string) (*models.Signal, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		if sig.Name == name {
			return sig, nil
		}
	}
	return nil, apperr.NotFound("signal")
}

// View preloads any not-yet-loaded requested signals, clips each to
// [t0,t1], downsamples when the clipped length exceeds maxPoints, and
// returns per-signal arrays plus min/max over the clipped (not
// downsampled) range. Per-signal load failures are recovered: that signal
// is omitted from the result rather than failing the whole call.
func (m *Manager) View(ctx context.Context, id string, indices []int, t0, t1 float64, maxPoints int) (*models.ViewResponse, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	resp := &models.ViewResponse{Signals: make([]models.SignalView, 0, len(indices))}

	for _, idx := range indices {
		sig, ok := s.byIndex[idx]
		if !ok {
			continue
		}
		if !sig.Loaded {
			if _, err := m.preloadLocked(ctx, s, sig); err != nil {
				continue
			}
		}

		clipX, clipY := clip(sig.Timestamps, sig.Values, t0, t1)
		if len(clipX) == 0 {
			continue
		}

		minV, maxV := minMax(clipY)
		resp.OriginalPoints += len(clipX)

		outX, outY := clipX, clipY
		complete := true
		if maxPoints > 0 && len(clipX) > maxPoints {
			dsX, dsY := downsample.Downsample(clipX, clipY, maxPoints)
			outX64 := make([]float64, len(dsX))
			outY64 := make([]float64, len(dsY))
			for i := range dsX {
				outX64[i] = float64(dsX[i])
				outY64[i] = float64(dsY[i])
			}
			outX, outY = outX64, outY64
			complete = false
		}
		resp.ReturnedPoints += len(outX)

		resp.Signals = append(resp.Signals, models.SignalView{
			Name:           sig.Name,
			Unit:           sig.Unit,
			Color:          sig.Color,
			Timestamps:     outX,
			Values:         outY,
			Min:            minV,
			Max:            maxV,
			OriginalPoints: len(clipX),
			ReturnedPoints: len(outX),
			IsComplete:     complete,
		})
	}

	return resp, nil
}

func clip(ts, vals []float64, t0, t1 float64) ([]float64, []float64) {
	lo := sort.SearchFloat64s(ts, t0)
	hi := sort.Search(len(ts), func(i int) bool { return ts[i] > t1 })
	if lo >= hi {
		return nil, nil
	}
	return ts[lo:hi], vals[lo:hi]
}

func minMax(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Evict closes sessions idle past idleTimeout, then — if the live count
// still exceeds maxSessions — evicts oldest-by-last-access until the count
// is back at the cap. cmd/server calls it once a minute; CreateSession also
// runs the same sweep after each insert.
func (m *Manager) Evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
}

func (m *Manager) evictLocked() {
	now := time.Now()
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := m.idleTimeout > 0 && now.Sub(s.lastAccess) > m.idleTimeout
		s.mu.Unlock()
		if idle {
			m.closeAndDeleteLocked(id)
		}
	}

	if m.maxSessions <= 0 || len(m.sessions) <= m.maxSessions {
		return
	}

	type entry struct {
		id   string
		last time.Time
	}
	ordered := make([]entry, 0, len(m.sessions))
	for id, s := range m.sessions {
		s.mu.Lock()
		ordered = append(ordered, entry{id: id, last: s.lastAccess})
		s.mu.Unlock()
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].last.Before(ordered[j].last) })

	excess := len(m.sessions) - m.maxSessions
	for i := 0; i < excess; i++ {
		m.closeAndDeleteLocked(ordered[i].id)
	}
}

// closeAndDeleteLocked closes and removes a session. Caller must hold m.mu.
func (m *Manager) closeAndDeleteLocked(id string) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	s.mu.Lock()
	if s.rec != nil {
		_ = s.rec.Close()
	}
	s.mu.Unlock()
}

// Count returns the number of live sessions (test/metrics helper).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
