// Package mqtt owns the broker session: connection lifecycle, telemetry
// subscriptions, availability, discovery and health publication.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTimeout bounds every blocking broker operation
const DefaultTimeout = 10 * time.Second

// Client is the paho-backed Session. A fresh paho client is created on
// every Connect so that new broker settings always take effect.
type Client struct {
	client  mqtt.Client
	broker  string
	timeout time.Duration
	mu      sync.RWMutex
	logger  *log.Logger
}

// NewClient creates a disconnected client
func NewClient(logger *log.Logger) *Client {
	return &Client{
		logger:  logger,
		timeout: DefaultTimeout,
	}
}

// Connect establishes a connection to the broker
func (c *Client) Connect(o ConnectOptions) error {
	if o.Broker == "" {
		return fmt.Errorf("MQTT broker address is required: %w", ErrDisabled)
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	if o.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, o.WillPayload, o.WillQoS, o.WillRetained)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connection lost: %v", err)
		}
	})

	// Reconnects are driven by the Manager's fixed-interval loop
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(timeout)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.client = nil
	c.broker = o.Broker
	c.timeout = timeout

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT broker %s: timeout after %s", o.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", o.Broker, err)
	}

	c.client = client
	return nil
}

// Disconnect closes the connection to the broker
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return
	}

	c.client.Disconnect(250) // Wait up to 250ms for graceful disconnect
	c.client = nil

	if c.logger != nil {
		c.logger.Printf("[MQTT] Disconnected from broker %s", c.broker)
	}
}

// IsConnected returns true if the client is connected to the broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && c.client.IsConnected()
}

// Subscribe registers handler for topic
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.RLock()
	client, timeout := c.client, c.timeout
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("failed to subscribe to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// Publish publishes payload to topic
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.RLock()
	client, timeout := c.client, c.timeout
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("failed to publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
