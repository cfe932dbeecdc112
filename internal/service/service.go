package service

import (
	"context"
	"fmt"
	"time"

	"domo/internal/clock"
	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/models"
	"domo/internal/repository"
)

// Options configures the client core.
type Options struct {
	Connection ConnectionOptions
	Priority   []string
	Units      map[string]string // sensor kind -> unit suffix
	Transforms TransformTable
	Location   *time.Location // time-of-day attributes; nil means time.Local
}

// Deps are the collaborators of the client core. Renderer and Controls
// may be nil.
type Deps struct {
	Dialer   Dialer
	Repos    *repository.Repository
	Renderer Renderer
	Controls ControlSurface
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// Service is the client context: the event loop and everything confined
// to it. Exported methods are safe for concurrent use.
type Service struct {
	journal *Journal
	loop    *eventLoop
	store   *TimeSeriesStore
	mirror  *ActuatorMirror
	conn    *ConnectionManager
	cache   repository.Cache
	units   map[string]string
	log     *logger.Logger
}

func NewService(opts Options, d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	loop := newEventLoop()
	store := NewTimeSeriesStore(d.Repos.Cache, d.Renderer, opts.Priority, d.Metrics, d.Log.Named("store"))
	mirror := NewActuatorMirror(d.Repos.Cache, d.Controls, opts.Transforms, d.Clock, opts.Location, d.Metrics, d.Log.Named("actuators"))
	conn := newConnectionManager(opts.Connection, d.Dialer, loop, d.Clock, store, mirror, d.Renderer,
		d.Repos.EventRepo, d.Repos.Cache, d.Metrics, d.Log.Named("connection"))

	return &Service{
		journal: NewJournal(d.Repos.EventRepo),
		loop:    loop,
		store:   store,
		mirror:  mirror,
		conn:    conn,
		cache:   d.Repos.Cache,
		units:   opts.Units,
		log:     d.Log,
	}
}

// Run restores the cache, connects and processes events until ctx is
// cancelled. The connection is closed before Run returns.
func (s *Service) Run(ctx context.Context) error {
	s.conn.ctx = ctx
	s.store.Load(ctx)
	s.mirror.Load(ctx)
	s.conn.loadCredential(ctx)
	if err := s.conn.Connect(); err != nil {
		return fmt.Errorf("initial connect: %w", err)
	}
	s.loop.run(ctx)
	s.conn.shutdown()
	return nil
}

// Unit returns the display unit of a sensor kind.
func (s *Service) Unit(kind string) string {
	return s.units[kind]
}

func (s *Service) Status(ctx context.Context) (models.ConnectionStatus, error) {
	var st models.ConnectionStatus
	err := s.loop.call(ctx, func() { st = s.conn.Status() })
	return st, err
}

// SetCredential stores a new credential and reconnects with it.
func (s *Service) SetCredential(ctx context.Context, credential string) error {
	var opErr error
	if err := s.loop.call(ctx, func() { opErr = s.conn.SetCredential(credential) }); err != nil {
		return err
	}
	return opErr
}

// Sensors returns every cached sensor in display order.
func (s *Service) Sensors(ctx context.Context) ([]SensorView, error) {
	var out []SensorView
	err := s.loop.call(ctx, func() { out = s.store.Views() })
	return out, err
}

func (s *Service) Sensor(ctx context.Context, key string) (SensorView, error) {
	var (
		v  SensorView
		ok bool
	)
	if err := s.loop.call(ctx, func() { v, ok = s.store.View(key) }); err != nil {
		return SensorView{}, err
	}
	if !ok {
		return SensorView{}, fmt.Errorf("%w: %q", ErrUnknownSensor, key)
	}
	return v, nil
}

// Actuators returns the stored attributes of every actuator.
func (s *Service) Actuators(ctx context.Context) (models.ActuatorState, error) {
	var st models.ActuatorState
	err := s.loop.call(ctx, func() { st = s.mirror.State() })
	return st, err
}

// ActuatorInputs returns the widget values of one actuator.
func (s *Service) ActuatorInputs(ctx context.Context, name string) (models.Attributes, error) {
	var (
		out   models.Attributes
		opErr error
	)
	if err := s.loop.call(ctx, func() { out, opErr = s.mirror.DisplayValues(name) }); err != nil {
		return nil, err
	}
	return out, opErr
}

// EditActuator applies a widget value to one attribute.
func (s *Service) EditActuator(ctx context.Context, name, attribute string, value any) (EditResult, error) {
	var (
		res   EditResult
		opErr error
	)
	if err := s.loop.call(ctx, func() { res, opErr = s.mirror.ApplyLocalEdit(name, attribute, value) }); err != nil {
		return EditResult{}, err
	}
	return res, opErr
}

// ConnectionLog lists journaled status transitions.
func (s *Service) ConnectionLog(ctx context.Context, f JournalFilter) ([]models.ConnectionEvent, error) {
	return s.journal.List(ctx, f)
}

// Tab returns the stored tab preference, empty when unset.
func (s *Service) Tab(ctx context.Context) (string, error) {
	tab, _, err := s.cache.Get(ctx, repository.KeyTab)
	return tab, err
}

func (s *Service) SetTab(ctx context.Context, tab string) error {
	return s.cache.Set(ctx, repository.KeyTab, tab)
}
