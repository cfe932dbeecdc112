package service

import "domo/internal/models"

// Renderer is told when something it displays went stale. All callbacks
// run on the event loop and must not block.
type Renderer interface {
	ConnectionStatus(status models.ConnectionStatus)
	SensorStale(key string)
	SensorRemoved(key string)
}

// ControlSurface shows actuator inputs. refreshInputs is false for edits
// the user just made, so the widget being dragged is left alone.
type ControlSurface interface {
	ActuatorsChanged(name string, refreshInputs bool)
}

// NopSurface ignores every notification.
type NopSurface struct{}

func (NopSurface) ConnectionStatus(models.ConnectionStatus) {}
func (NopSurface) SensorStale(string)                       {}
func (NopSurface) SensorRemoved(string)                     {}
func (NopSurface) ActuatorsChanged(string, bool)            {}
