package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message names used on the control connection.
const (
	MsgConnect      = "connect"
	MsgConnected    = "connected"
	MsgDisconnected = "disconnected"
	MsgActuator     = "actuator"
	MsgLog          = "log"
)

// DefaultCredentialField is the connect request key carrying the credential.
// Older controllers expect "password" or "deviceSerial" instead.
const DefaultCredentialField = "credential"

var (
	ErrUnknownMessage   = errors.New("unknown message")
	ErrMalformedMessage = errors.New("malformed message")
)

// LastLogTime tells the controller how much history the client already has.
type LastLogTime struct {
	LastTime int64 `json:"lastTime"`
}

// ConnectRequest is the first message sent after the transport opens.
type ConnectRequest struct {
	CredentialField string
	Credential      string
	LastLogTimes    map[string]LastLogTime
}

// MarshalJSON writes the credential under the configured field name.
func (r ConnectRequest) MarshalJSON() ([]byte, error) {
	field := r.CredentialField
	if field == "" {
		field = DefaultCredentialField
	}
	times := r.LastLogTimes
	if times == nil {
		times = map[string]LastLogTime{}
	}
	return json.Marshal(map[string]any{
		"message":      MsgConnect,
		field:          r.Credential,
		"lastLogTimes": times,
	})
}

// ActuatorUpdate pushes the full attribute mapping of one actuator upstream.
type ActuatorUpdate struct {
	Name  string     `json:"name"`
	Value Attributes `json:"value"`
}

// MarshalJSON adds the message discriminator.
func (u ActuatorUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message string     `json:"message"`
		Name    string     `json:"name"`
		Value   Attributes `json:"value"`
	}{MsgActuator, u.Name, u.Value})
}

// ConnectedMessage is the handshake response carrying the snapshot.
type ConnectedMessage struct {
	Logs      map[string]*SensorRecord `json:"logs"`
	Actuators ActuatorState            `json:"actuators"`
}

// DisconnectedMessage reports a handshake or authentication failure.
type DisconnectedMessage struct {
	Error string `json:"error"`
}

// ActuatorMessage is a remote actuator state change.
type ActuatorMessage struct {
	Name  string     `json:"name"`
	Value Attributes `json:"value"`
}

// LogMessage carries new samples for one sensor.
type LogMessage struct {
	Sensor string     `json:"sensor"`
	Log    []LogPoint `json:"log"`
}

type envelope struct {
	Message string `json:"message"`
}

// DecodeServerMessage parses an inbound frame into one of *ConnectedMessage,
// *DisconnectedMessage, *ActuatorMessage or *LogMessage.
func DecodeServerMessage(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var msg any
	switch env.Message {
	case MsgConnected:
		msg = &ConnectedMessage{}
	case MsgDisconnected:
		msg = &DisconnectedMessage{}
	case MsgActuator:
		msg = &ActuatorMessage{}
	case MsgLog:
		msg = &LogMessage{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Message)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Message, err)
	}
	return msg, nil
}
