package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"domo/internal/models"
)

// memCache is an in-memory repository.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	writes  int
	loadErr error
	saveErr error
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.data[key] = value
	return c.saveErr
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) SaveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(b))
}

func (c *memCache) LoadJSON(ctx context.Context, key string, v any) (bool, error) {
	if c.loadErr != nil {
		return false, c.loadErr
	}
	s, ok, _ := c.Get(ctx, key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(s), v)
}

func (c *memCache) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// recorder captures renderer and control surface notifications.
type recorder struct {
	mu        sync.Mutex
	statuses  []models.ConnectionStatus
	stale     []string
	removed   []string
	actuators []string
	refreshed []bool

	onStale func(key string)
}

func (r *recorder) ConnectionStatus(s models.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) SensorStale(key string) {
	if r.onStale != nil {
		r.onStale(key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = append(r.stale, key)
}

func (r *recorder) SensorRemoved(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, key)
}

func (r *recorder) ActuatorsChanged(name string, refreshInputs bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actuators = append(r.actuators, name)
	r.refreshed = append(r.refreshed, refreshInputs)
}

func (r *recorder) staleKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stale...)
}

// fakeSender stands in for the connection in mirror tests.
type fakeSender struct {
	connected bool
	err       error
	sent      []any
}

func (s *fakeSender) Connected() bool { return s.connected }

func (s *fakeSender) Send(v any) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, v)
	return nil
}

var errTransportClosed = errors.New("transport closed")

// fakeTransport is a controller connection driven by the test.
type fakeTransport struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []any
	pings   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (t *fakeTransport) Read() ([]byte, error) {
	select {
	case f := <-t.frames:
		return f, nil
	case <-t.closed:
		return nil, errTransportClosed
	}
}

func (t *fakeTransport) Write(v any) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, v)
	return nil
}

func (t *fakeTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pings++
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) push(frame string) { t.frames <- []byte(frame) }

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) messages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.written...)
}

// fakeDialer hands out a new fakeTransport per dial unless dial is set.
type fakeDialer struct {
	mu         sync.Mutex
	dials      int
	dial       func(ctx context.Context) (Transport, error)
	transports chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{transports: make(chan *fakeTransport, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	d.dials++
	dial := d.dial
	d.mu.Unlock()
	if dial != nil {
		return dial(ctx)
	}
	t := newFakeTransport()
	d.transports <- t
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) setDial(f func(ctx context.Context) (Transport, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dial = f
}
