package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MessageType tags every frame exchanged on /ws.
type MessageType string

// Control frames. Progress events carry their own type (render_started,
// turn_progress, ...).
const (
	MessageTypeConnected MessageType = "connected"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage is embedded in every control frame
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ConnectedMessage greets a new subscriber with the id it was registered under
type ConnectedMessage struct {
	BaseMessage
	ClientID string `json:"client_id"`
}

type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty" validate:"max=256"`
}

type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator decodes inbound frames and checks their struct tags
type MessageValidator struct {
	validate *validator.Validate
}

func NewMessageValidator() *MessageValidator {
	return &MessageValidator{validate: validator.New()}
}

// ValidateMessage decodes raw into its concrete frame type. Only ping is
// accepted from clients.
func (v *MessageValidator) ValidateMessage(raw []byte) (any, error) {
	var head BaseMessage
	if err := v.decode(raw, &head); err != nil {
		return nil, err
	}

	if head.Type != MessageTypePing {
		return nil, fmt.Errorf("unsupported message type: %s", head.Type)
	}
	var ping PingMessage
	if err := v.decode(raw, &ping); err != nil {
		return nil, fmt.Errorf("invalid ping message: %w", err)
	}
	if ping.Timestamp == "" {
		ping.Timestamp = now()
	}
	return &ping, nil
}

func (v *MessageValidator) decode(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if err := v.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

func header(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: now()}
}

func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: header(MessageTypeError), Code: code, Message: message, Details: details}
}

func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: header(MessageTypePong), Data: data}
}

func CreateConnectedMessage(clientID string) *ConnectedMessage {
	return &ConnectedMessage{BaseMessage: header(MessageTypeConnected), ClientID: clientID}
}

func now() string { return time.Now().Format(time.RFC3339) }
