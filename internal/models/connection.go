package models

import "time"

// ConnectionState is the lifecycle state of the control connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Errored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Category maps a state onto the status indicator class shown to the user.
func (s ConnectionState) Category() StatusCategory {
	switch s {
	case Connecting:
		return StatusConnecting
	case Connected:
		return StatusConnected
	default:
		return StatusError
	}
}

// StatusCategory is the display class of the connection indicator.
type StatusCategory string

const (
	StatusConnecting StatusCategory = "connecting"
	StatusConnected  StatusCategory = "connected"
	StatusError      StatusCategory = "error"
)

// ConnectionStatus is what the status indicator displays.
type ConnectionStatus struct {
	State            ConnectionState `json:"-"`
	StateName        string          `json:"state"`
	Message          string          `json:"message"`
	Category         StatusCategory  `json:"category"`
	ReconnectAttempt int             `json:"reconnect_attempt"`
}

// ConnectionEvent is a single journal entry for a status transition.
type ConnectionEvent struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	State      string    `json:"state"`   // CONNECTING | CONNECTED | ERRORED | DISCONNECTED
	Message    string    `json:"message"` // human-readable status line
	Attempt    int       `json:"attempt"`
}
