package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"domo/internal/clock"
	"domo/internal/models"
	"domo/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Client Mocks ----

type mockClient struct {
	mu sync.Mutex

	status    models.ConnectionStatus
	statusErr error

	sensors    []service.SensorView
	sensorsErr error
	units      map[string]string

	actuators models.ActuatorState
	inputs    map[string]models.Attributes
	editRes   service.EditResult
	editErr   error

	credErr  error
	lastCred string

	events    []models.ConnectionEvent
	logErr    error
	lastLogF  service.JournalFilter
	tab       string
	tabErr    error
	lastEdit  actuatorEditInput
	lastActor string
}

func (m *mockClient) Status(ctx context.Context) (models.ConnectionStatus, error) {
	return m.status, m.statusErr
}

func (m *mockClient) SetCredential(ctx context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if credential == "" {
		return service.ErrEmptyCredential
	}
	m.lastCred = credential
	return m.credErr
}

func (m *mockClient) Sensors(ctx context.Context) ([]service.SensorView, error) {
	return m.sensors, m.sensorsErr
}

func (m *mockClient) Sensor(ctx context.Context, key string) (service.SensorView, error) {
	if m.sensorsErr != nil {
		return service.SensorView{}, m.sensorsErr
	}
	for _, v := range m.sensors {
		if v.Key == key {
			return v, nil
		}
	}
	return service.SensorView{}, fmt.Errorf("%w: %q", service.ErrUnknownSensor, key)
}

func (m *mockClient) Unit(kind string) string { return m.units[kind] }

func (m *mockClient) Actuators(ctx context.Context) (models.ActuatorState, error) {
	return m.actuators, nil
}

func (m *mockClient) ActuatorInputs(ctx context.Context, name string) (models.Attributes, error) {
	attrs, ok := m.inputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", service.ErrUnknownActuator, name)
	}
	return attrs, nil
}

func (m *mockClient) EditActuator(ctx context.Context, name, attribute string, value any) (service.EditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActor = name
	m.lastEdit = actuatorEditInput{Attribute: attribute, Value: value}
	return m.editRes, m.editErr
}

func (m *mockClient) ConnectionLog(ctx context.Context, f service.JournalFilter) ([]models.ConnectionEvent, error) {
	m.lastLogF = f
	return m.events, m.logErr
}

func (m *mockClient) Tab(ctx context.Context) (string, error) { return m.tab, m.tabErr }

func (m *mockClient) SetTab(ctx context.Context, tab string) error {
	m.tab = tab
	return m.tabErr
}

type mockAuth struct {
	enabled  bool
	token    string
	genErr   error
	parseErr error

	lastPassword string
	lastToken    string
}

func (m *mockAuth) Enabled() bool { return m.enabled }

func (m *mockAuth) GenerateToken(password string) (string, error) {
	m.lastPassword = password
	return m.token, m.genErr
}

func (m *mockAuth) ParseToken(token string) error {
	m.lastToken = token
	return m.parseErr
}

// ---- Shared Test Helpers ----

var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestHandler(c *mockClient, auth Authorization) *Handler {
	gin.SetMode(gin.TestMode)
	return NewHandler(Deps{
		Client: c,
		Auth:   auth,
		Graph:  GraphOptions{Width: 300, Height: 100, DevicePixelRatio: 1, Location: time.UTC},
		Clock:  clock.Fake(testNow),
	})
}

func newTestRouter(c *mockClient, auth Authorization) *gin.Engine {
	return newTestHandler(c, auth).InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
