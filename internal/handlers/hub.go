package handlers

import (
	"encoding/json"
	"sync"

	"domo/internal/graph"
	"domo/internal/logger"
	"domo/internal/models"
)

// Push message types.
const (
	eventStatus        = "status"
	eventSensor        = "sensor"
	eventSensorRemoved = "sensor_removed"
	eventActuators     = "actuators"
)

const subscriberBuffer = 64

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type sensorEvent struct {
	Key string `json:"key"`
}

type actuatorEvent struct {
	Name          string `json:"name,omitempty"` // empty means all actuators
	RefreshInputs bool   `json:"refresh_inputs"`
}

type subscriber struct {
	send chan []byte
}

// Hub is the renderer and control surface of the client core. It fans
// every notification out to the connected dashboard websockets.
type Hub struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}
	status  *models.ConnectionStatus
	memo    *graph.Memo
	log     *logger.Logger
}

// NewHub returns a hub that forgets memoized layouts of removed sensors.
func NewHub(memo *graph.Memo, log *logger.Logger) *Hub {
	if memo == nil {
		memo = graph.NewMemo()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{clients: make(map[*subscriber]struct{}), memo: memo, log: log}
}

// Memo is the layout cache shared with the graph routes.
func (h *Hub) Memo() *graph.Memo { return h.memo }

func (h *Hub) ConnectionStatus(st models.ConnectionStatus) {
	h.mu.Lock()
	h.status = &st
	h.mu.Unlock()
	h.broadcast(wsEnvelope{Type: eventStatus, Data: st})
}

func (h *Hub) SensorStale(key string) {
	h.broadcast(wsEnvelope{Type: eventSensor, Data: sensorEvent{Key: key}})
}

func (h *Hub) SensorRemoved(key string) {
	h.memo.Forget(key)
	h.broadcast(wsEnvelope{Type: eventSensorRemoved, Data: sensorEvent{Key: key}})
}

func (h *Hub) ActuatorsChanged(name string, refreshInputs bool) {
	h.broadcast(wsEnvelope{Type: eventActuators, Data: actuatorEvent{Name: name, RefreshInputs: refreshInputs}})
}

// subscribe registers a websocket. The last known status is queued first.
func (h *Hub) subscribe() *subscriber {
	s := &subscriber{send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != nil {
		if b, err := json.Marshal(wsEnvelope{Type: eventStatus, Data: *h.status}); err == nil {
			s.send <- b
		}
	}
	h.clients[s] = struct{}{}
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s]; ok {
		delete(h.clients, s)
		close(s.send)
	}
}

// broadcast never blocks the caller; a subscriber that cannot keep up is
// disconnected.
func (h *Hub) broadcast(env wsEnvelope) {
	b, err := json.Marshal(env)
	if err != nil {
		h.log.Errorw("ws_marshal_failed", "type", env.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		select {
		case s.send <- b:
		default:
			h.log.Warnw("ws_subscriber_dropped", "reason", "send buffer full")
			delete(h.clients, s)
			close(s.send)
		}
	}
}

// Subscribers reports how many websockets are attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
