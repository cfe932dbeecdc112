package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/models"
	"domo/internal/repository"
)

// ErrUnknownSensor is returned for a sensor key that is not cached.
var ErrUnknownSensor = errors.New("unknown sensor")

const cacheTimeout = 5 * time.Second

// preWindowPoints is how many samples older than the retention window are
// kept so the graph line enters from the left edge. One is enough to draw
// the crossing segment; two are kept so a pruned log always has
// min(2, len) samples before the window.
const preWindowPoints = 2

// SensorView is a copy of one cached sensor handed out of the event loop.
type SensorView struct {
	Key      string               `json:"key"`
	Record   *models.SensorRecord `json:"record"`
	Revision uint64               `json:"revision"`
}

type sensorEntry struct {
	rec      *models.SensorRecord
	revision uint64
}

// TimeSeriesStore is the local mirror of every sensor's 24h log. It is
// confined to the event loop.
type TimeSeriesStore struct {
	sensors  map[string]*sensorEntry
	priority []string
	cache    repository.Cache
	renderer Renderer
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewTimeSeriesStore(cache repository.Cache, renderer Renderer, priority []string, m *metrics.Metrics, log *logger.Logger) *TimeSeriesStore {
	if renderer == nil {
		renderer = NopSurface{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TimeSeriesStore{
		sensors:  make(map[string]*sensorEntry),
		priority: priority,
		cache:    cache,
		renderer: renderer,
		metrics:  m,
		log:      log,
	}
}

// Load restores the sensor cache. A missing or corrupt entry yields an
// empty store. Every restored sensor is signalled for its first render.
func (s *TimeSeriesStore) Load(ctx context.Context) {
	var saved map[string]*models.SensorRecord
	ok, err := s.cache.LoadJSON(ctx, repository.KeySensors, &saved)
	if err != nil {
		s.log.Warnw("sensor_cache_corrupt", "err", err)
		return
	}
	if !ok {
		return
	}
	for key, rec := range saved {
		if rec == nil {
			continue
		}
		rec.Log = normalizeLog(rec.Log)
		s.sensors[key] = &sensorEntry{rec: rec, revision: 1}
	}
	s.metrics.SetSensors(len(s.sensors))
	for _, key := range s.SensorOrder() {
		s.renderer.SensorStale(key)
	}
}

// ApplySnapshot merges the handshake record for one sensor.
func (s *TimeSeriesStore) ApplySnapshot(key string, rec *models.SensorRecord) bool {
	if rec == nil {
		return false
	}
	if !s.applySnapshot(key, rec) {
		return false
	}
	s.commit([]string{key}, nil)
	return true
}

// ApplySnapshots merges a full handshake snapshot and drops every cached
// sensor the snapshot no longer lists. A nil snapshot leaves the cache as is.
func (s *TimeSeriesStore) ApplySnapshots(snapshot map[string]*models.SensorRecord) {
	if snapshot == nil {
		return
	}
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var stale, removed []string
	for _, key := range keys {
		if rec := snapshot[key]; rec != nil && s.applySnapshot(key, rec) {
			stale = append(stale, key)
		}
	}
	for key := range s.sensors {
		if _, ok := snapshot[key]; !ok {
			delete(s.sensors, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	if len(stale) > 0 || len(removed) > 0 {
		s.commit(stale, removed)
	}
}

// applySnapshot mutates the cache for one record. Exactly one branch applies.
func (s *TimeSeriesStore) applySnapshot(key string, rec *models.SensorRecord) bool {
	e, ok := s.sensors[key]
	switch {
	case !ok:
		c := rec.Clone()
		c.Log = normalizeLog(c.Log)
		s.sensors[key] = &sensorEntry{rec: c, revision: 1}
		return true
	case !e.rec.SameMeta(rec):
		c := rec.Clone()
		e.rec.HumanName = c.HumanName
		e.rec.Kind = c.Kind
		e.rec.DesiredValue = c.DesiredValue
	case len(e.rec.Log) == 0:
		e.rec.Log = normalizeLog(append([]models.LogPoint(nil), rec.Log...))
	case len(rec.Log) == 0:
		return false
	case rec.LastTime() > e.rec.LastTime():
		return s.appendLog(key, rec.Log)
	default:
		return false
	}
	e.revision++
	return true
}

// AppendLog adds samples newer than the cached tail. Unknown keys get a
// fresh record. Re-delivered samples change nothing.
func (s *TimeSeriesStore) AppendLog(key string, points []models.LogPoint) bool {
	if !s.appendLog(key, points) {
		return false
	}
	s.commit([]string{key}, nil)
	return true
}

func (s *TimeSeriesStore) appendLog(key string, points []models.LogPoint) bool {
	e, ok := s.sensors[key]
	if !ok {
		e = &sensorEntry{rec: &models.SensorRecord{}}
		s.sensors[key] = e
	}

	appended, duplicate := 0, 0
	for _, p := range points {
		if n := len(e.rec.Log); n > 0 && p.Time <= e.rec.Log[n-1].Time {
			duplicate++
			continue
		}
		e.rec.Log = append(e.rec.Log, p)
		appended++
	}

	var pruned int
	e.rec.Log, pruned = pruneLog(e.rec.Log, models.RetentionSeconds)
	s.metrics.LogPoints(appended, duplicate, pruned)

	if appended == 0 && ok {
		return false
	}
	e.revision++
	return true
}

// commit persists the cache and then tells the renderer what changed.
func (s *TimeSeriesStore) commit(stale, removed []string) {
	s.persist()
	s.metrics.SetSensors(len(s.sensors))
	for _, key := range removed {
		s.renderer.SensorRemoved(key)
	}
	for _, key := range stale {
		s.renderer.SensorStale(key)
	}
}

func (s *TimeSeriesStore) persist() {
	out := make(map[string]*models.SensorRecord, len(s.sensors))
	for key, e := range s.sensors {
		out[key] = e.rec
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.SaveJSON(ctx, repository.KeySensors, out); err != nil {
		s.log.Warnw("sensor_cache_write_failed", "err", err)
	}
}

// SensorOrder returns the cached keys sorted, with each priority key
// hoisted to its index in the priority list.
func (s *TimeSeriesStore) SensorOrder() []string {
	keys := make([]string, 0, len(s.sensors))
	for key := range s.sensors {
		keys = append(keys, key)
	}
	return orderKeys(keys, s.priority)
}

func orderKeys(keys, priority []string) []string {
	sort.Strings(keys)
	for i, p := range priority {
		idx := slices.Index(keys, p)
		if idx > i {
			keys = slices.Delete(keys, idx, idx+1)
			keys = slices.Insert(keys, i, p)
		}
	}
	return keys
}

// LastLogTimes is the per-sensor resume point sent in the handshake.
func (s *TimeSeriesStore) LastLogTimes() map[string]models.LastLogTime {
	out := make(map[string]models.LastLogTime, len(s.sensors))
	for key, e := range s.sensors {
		out[key] = models.LastLogTime{LastTime: e.rec.LastTime()}
	}
	return out
}

// View returns a copy of one sensor.
func (s *TimeSeriesStore) View(key string) (SensorView, bool) {
	e, ok := s.sensors[key]
	if !ok {
		return SensorView{}, false
	}
	return SensorView{Key: key, Record: e.rec.Clone(), Revision: e.revision}, true
}

// Views returns copies of every sensor in display order.
func (s *TimeSeriesStore) Views() []SensorView {
	order := s.SensorOrder()
	out := make([]SensorView, 0, len(order))
	for _, key := range order {
		v, _ := s.View(key)
		out = append(out, v)
	}
	return out
}

// normalizeLog drops samples that break strict time ordering.
func normalizeLog(log []models.LogPoint) []models.LogPoint {
	out := log[:0]
	for _, p := range log {
		if n := len(out); n > 0 && p.Time <= out[n-1].Time {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pruneLog drops samples older than window before the newest one, keeping
// the preWindowPoints samples right before the cutoff.
func pruneLog(log []models.LogPoint, window int64) ([]models.LogPoint, int) {
	if len(log) == 0 {
		return log, 0
	}
	cutoff := log[len(log)-1].Time - window
	first := sort.Search(len(log), func(i int) bool { return log[i].Time >= cutoff })
	drop := first - preWindowPoints
	if drop <= 0 {
		return log, 0
	}
	return append([]models.LogPoint(nil), log[drop:]...), drop
}
