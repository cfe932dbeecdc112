package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"domo/internal/clock"
	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/models"
	"domo/internal/repository"
)

// ErrUnknownActuator is returned for edits of an actuator the controller
// never reported.
var ErrUnknownActuator = errors.New("unknown actuator")

// Sender delivers messages on the control connection.
type Sender interface {
	Connected() bool
	Send(v any) error
}

// EditResult describes what a local edit did.
type EditResult struct {
	Changed bool `json:"changed"`
	Sent    bool `json:"sent"`
}

// ActuatorMirror keeps the last known attributes of every actuator and
// pushes local edits upstream. It is confined to the event loop.
type ActuatorMirror struct {
	state      models.ActuatorState
	transforms TransformTable
	cache      repository.Cache
	surface    ControlSurface
	sender     Sender
	clock      clock.Clock
	loc        *time.Location
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewActuatorMirror(cache repository.Cache, surface ControlSurface, transforms TransformTable, clk clock.Clock, loc *time.Location, m *metrics.Metrics, log *logger.Logger) *ActuatorMirror {
	if surface == nil {
		surface = NopSurface{}
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ActuatorMirror{
		state:      make(models.ActuatorState),
		transforms: transforms,
		cache:      cache,
		surface:    surface,
		clock:      clk,
		loc:        loc,
		metrics:    m,
		log:        log,
	}
}

// bind attaches the connection used to send edits.
func (a *ActuatorMirror) bind(s Sender) { a.sender = s }

// Load restores the actuator cache.
func (a *ActuatorMirror) Load(ctx context.Context) {
	var saved models.ActuatorState
	ok, err := a.cache.LoadJSON(ctx, repository.KeyActuators, &saved)
	if err != nil {
		a.log.Warnw("actuator_cache_corrupt", "err", err)
		return
	}
	if !ok || saved == nil {
		return
	}
	a.state = saved
	a.surface.ActuatorsChanged("", true)
}

// ApplySnapshot replaces the whole mapping with the handshake snapshot.
func (a *ActuatorMirror) ApplySnapshot(state models.ActuatorState) {
	a.state = state.Clone()
	if a.state == nil {
		a.state = make(models.ActuatorState)
	}
	a.persist()
	a.surface.ActuatorsChanged("", true)
}

// ApplyRemote records a state change reported by the controller.
func (a *ActuatorMirror) ApplyRemote(name string, attrs models.Attributes) {
	a.state[name] = attrs.Clone()
	a.persist()
	a.surface.ActuatorsChanged(name, true)
}

// ApplyLocalEdit applies a widget value to one attribute. Nothing happens
// when the stored value would not change. Edits made while disconnected
// are kept locally and not sent.
func (a *ActuatorMirror) ApplyLocalEdit(name, attribute string, raw any) (EditResult, error) {
	attrs, ok := a.state[name]
	if !ok {
		return EditResult{}, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	kind := a.transforms.Kind(name, attribute)
	value, err := ToStored(kind, raw, attrs[attribute], a.clock.Now(), a.loc)
	if err != nil {
		return EditResult{}, fmt.Errorf("%s.%s: %w", name, attribute, err)
	}

	if cur, exists := attrs[attribute]; exists && models.SameValue(cur, value) {
		a.metrics.ActuatorEdit("unchanged")
		return EditResult{}, nil
	}

	if attrs == nil {
		attrs = make(models.Attributes)
		a.state[name] = attrs
	}
	attrs[attribute] = value
	a.persist()
	a.surface.ActuatorsChanged(name, false)

	res := EditResult{Changed: true}
	if a.sender == nil || !a.sender.Connected() {
		a.log.Warnw("actuator_edit_dropped", "actuator", name, "attribute", attribute, "reason", "not connected")
		a.metrics.ActuatorEdit("dropped")
		return res, nil
	}
	if err := a.sender.Send(models.ActuatorUpdate{Name: name, Value: attrs.Clone()}); err != nil {
		a.log.Warnw("actuator_send_failed", "actuator", name, "err", err)
		a.metrics.ActuatorEdit("dropped")
		return res, nil
	}
	a.metrics.ActuatorEdit("sent")
	res.Sent = true
	return res, nil
}

// State returns a copy of every actuator's stored attributes.
func (a *ActuatorMirror) State() models.ActuatorState {
	return a.state.Clone()
}

// DisplayValue returns the widget value of one attribute.
func (a *ActuatorMirror) DisplayValue(name, attribute string) (any, bool) {
	attrs, ok := a.state[name]
	if !ok {
		return nil, false
	}
	v, ok := attrs[attribute]
	if !ok {
		return nil, false
	}
	return ToDisplay(a.transforms.Kind(name, attribute), v, a.clock.Now(), a.loc), true
}

// DisplayValues returns the widget values of every attribute of one actuator.
func (a *ActuatorMirror) DisplayValues(name string) (models.Attributes, error) {
	attrs, ok := a.state[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	out := make(models.Attributes, len(attrs))
	for attr := range attrs {
		out[attr], _ = a.DisplayValue(name, attr)
	}
	return out, nil
}

func (a *ActuatorMirror) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := a.cache.SaveJSON(ctx, repository.KeyActuators, a.state); err != nil {
		a.log.Warnw("actuator_cache_write_failed", "err", err)
	}
}
