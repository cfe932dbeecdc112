package graph

import "sync"

// Memo skips recomputing a sensor's layout when its data revision, viewport
// and time window are unchanged since the last call.
type Memo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
}

type memoEntry struct {
	revision      uint64
	width, height float64
	dpr           float64
	timeEnd       float64
	layout        *Layout
}

func NewMemo() *Memo {
	return &Memo{entries: make(map[string]memoEntry)}
}

// Layout returns the cached layout for key or computes and caches a new one.
func (m *Memo) Layout(key string, revision uint64, in Input) (*Layout, bool, error) {
	_, timeEnd := TimeWindow(in.Log, in.Now)

	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if ok && e.revision == revision && e.width == in.Width && e.height == in.Height && e.dpr == in.DevicePixelRatio && e.timeEnd == timeEnd {
		return e.layout, true, nil
	}

	l, err := Compute(in)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	m.entries[key] = memoEntry{revision: revision, width: in.Width, height: in.Height, dpr: in.DevicePixelRatio, timeEnd: timeEnd, layout: l}
	m.mu.Unlock()
	return l, false, nil
}

// Forget drops the cached layout of a removed sensor.
func (m *Memo) Forget(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len reports how many layouts are cached.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
