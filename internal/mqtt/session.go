package mqtt

import (
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned when publishing or subscribing without a
	// broker session
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrDisabled is returned when no broker host is configured
	ErrDisabled = errors.New("mqtt: disabled")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPacketSize
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)

// MessageHandler receives messages for a subscribed topic
type MessageHandler func(topic string, payload []byte)

// ConnectOptions describes one connection attempt
type ConnectOptions struct {
	Broker   string // tcp://host:port or ssl://host:port
	ClientID string
	Username string // empty for anonymous connect
	Password string
	UseTLS   bool

	// Last will, published by the broker if the session drops
	WillTopic    string
	WillPayload  string
	WillQoS      byte
	WillRetained bool

	Timeout time.Duration
}

// Session is a single broker connection. Implementations must not
// reconnect on their own: the Manager decides when to retry.
type Session interface {
	Connect(opts ConnectOptions) error
	Disconnect()
	IsConnected() bool
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
}
