package mqtt

import (
	"errors"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"energymon/internal/events"
	"energymon/internal/payload"
	"energymon/internal/telemetry"
)

const (
	// ReconnectInterval is the minimum time between connect attempts
	ReconnectInterval = 5 * time.Second

	// ResubscribeInterval is the minimum time between subscription retries
	ResubscribeInterval = 5 * time.Second
)

// State is the connection lifecycle state
type State int

const (
	StateDisabled State = iota
	StateIdle
	StateConnecting
	StateConnected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time copy of the connection state
type Status struct {
	Enabled              bool      `json:"enabled"`
	State                State     `json:"state"`
	Connected            bool      `json:"connected"`
	Broker               string    `json:"broker,omitempty"`
	ClientID             string    `json:"clientId,omitempty"`
	SubscriptionsActive  bool      `json:"subscriptionsActive"`
	DiscoveryPublished   bool      `json:"discoveryPublished"`
	SolarTopic           string    `json:"solarTopic,omitempty"`
	GridTopic            string    `json:"gridTopic,omitempty"`
	LastReconnectAttempt time.Time `json:"lastReconnectAttempt"`
	LastHealthPublish    time.Time `json:"lastHealthPublish"`
	ConnectAttempts      int       `json:"connectAttempts"`
	MessagesReceived     int64     `json:"messagesReceived"`
	DecodeFailures       int64     `json:"decodeFailures"`
}

type route struct {
	category telemetry.Category
	path     string
}

// Manager owns the broker session. Loop must be called periodically from a
// single goroutine; RequestReconnect, Status and HandleMessage are safe to
// call from any goroutine.
type Manager struct {
	session  Session
	settings func() Settings
	store    *telemetry.Store
	health   HealthSource
	events   *events.Store
	logger   *log.Logger
	now      func() time.Time

	// Loop-owned state
	state                State
	connected            bool
	current              Settings // as of the latest Loop
	active               Settings // used by the current session
	topics               Topics
	discovery            *Discovery
	attempted            bool
	lastReconnectAttempt time.Time
	subscribeAttempted   bool
	lastSubscribeAttempt time.Time
	lastHealthPublish    time.Time
	subscriptionsActive  bool
	discoveryPublished   bool
	connectAttempts      int

	reconnectRequested atomic.Bool
	messages           atomic.Int64
	decodeFailures     atomic.Int64

	routeMu sync.RWMutex
	routes  map[string]route

	statusMu sync.RWMutex
	status   Status
}

// Options configures a Manager
type Options struct {
	Session  Session
	Settings func() Settings
	Store    *telemetry.Store
	Health   HealthSource     // optional
	Events   *events.Store    // optional
	Logger   *log.Logger      // optional
	Now      func() time.Time // clock used for message timestamps
}

// NewManager creates a manager in the Disabled state
func NewManager(o Options) *Manager {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		session:  o.Session,
		settings: o.Settings,
		store:    o.Store,
		health:   o.Health,
		events:   o.Events,
		logger:   o.Logger,
		now:      now,
		routes:   make(map[string]route),
	}
	m.publishStatus()
	return m
}

// RequestReconnect drops the current session on the next Loop and clears
// all retry timers so the following connect uses fresh settings.
func (m *Manager) RequestReconnect() {
	m.reconnectRequested.Store(true)
}

// Loop runs one iteration of the connection state machine. It never sleeps;
// retries are gated by comparing now against the recorded attempt times.
func (m *Manager) Loop(now time.Time) {
	defer m.publishStatus()

	if m.reconnectRequested.Swap(false) {
		m.resetSession("reconnect requested")
	}

	s := m.settings()
	m.current = s
	if !s.Enabled() {
		if m.state != StateDisabled {
			m.resetSession("broker host cleared")
			m.state = StateDisabled
			m.logf("[MQTT] Disabled (no broker host configured)")
		}
		return
	}
	if m.state == StateDisabled {
		m.state = StateIdle
	}

	if m.connected && !m.session.IsConnected() {
		m.connected = false
		m.subscriptionsActive = false
		m.state = StateIdle
		m.logf("[MQTT] Connection to %s lost", m.active.BrokerURL())
		m.events.Add(events.EventMQTTDisconnected, "", false, m.active.BrokerURL())
	}

	if !m.connected {
		m.ensureConnected(now, s)
		return
	}

	if !m.subscriptionsActive {
		if !m.subscribeAttempted || now.Sub(m.lastSubscribeAttempt) >= ResubscribeInterval {
			m.subscribeAttempted = true
			m.lastSubscribeAttempt = now
			m.subscribe()
		}
	}

	m.publishHealthIfDue(now)
}

func (m *Manager) ensureConnected(now time.Time, s Settings) {
	if m.attempted && now.Sub(m.lastReconnectAttempt) < ReconnectInterval {
		return
	}
	m.attempted = true
	m.lastReconnectAttempt = now
	m.connectAttempts++

	m.topics = NewTopics(s.DeviceName)
	opts := ConnectOptions{
		Broker:       s.BrokerURL(),
		ClientID:     m.topics.Device,
		Username:     s.Username,
		Password:     s.Password,
		UseTLS:       s.UseTLS,
		WillTopic:    m.topics.Availability,
		WillPayload:  PayloadOffline,
		WillQoS:      0,
		WillRetained: true,
	}

	m.state = StateConnecting
	m.logf("[MQTT] Connecting to %s as %s", opts.Broker, opts.ClientID)
	m.publishStatus()

	if err := m.session.Connect(opts); err != nil {
		m.state = StateIdle
		m.subscriptionsActive = false
		m.logf("[MQTT] Connect failed: %v", err)
		m.events.Add(events.EventMQTTConnectFailed, "", false, err.Error())
		return
	}

	m.connected = true
	m.active = s
	m.state = StateConnected
	m.logf("[MQTT] Connected to %s", opts.Broker)
	m.events.Add(events.EventMQTTConnected, "", true, opts.Broker)

	if err := m.session.Publish(m.topics.Availability, 0, true, []byte(PayloadOnline)); err != nil {
		m.logf("[MQTT] Failed to publish availability: %v", err)
	}

	m.publishDiscoveryOnce()
	m.subscribe()

	// Retained snapshot right away, even when periodic publishing is off
	m.publishHealth(now)
	m.lastHealthPublish = now
}

// publishDiscoveryOnce publishes the discovery configs once per device
// name. A partial failure is retried on the next connect from the same
// cached configs.
func (m *Manager) publishDiscoveryOnce() {
	if m.discovery == nil || m.discovery.Device() != m.topics.Device {
		m.discovery = NewDiscovery(m.topics, m.logger)
		m.discoveryPublished = false
	}
	if m.discoveryPublished {
		return
	}
	m.logf("[MQTT] Publishing HA discovery")
	if err := m.discovery.Publish(m.session); err != nil {
		return
	}
	m.discoveryPublished = true
}

// subscribe (re)subscribes the configured telemetry topics. Subscriptions
// count as active when at least one topic succeeded.
func (m *Manager) subscribe() {
	s := m.active

	routes := make(map[string]route, 2)
	if s.SolarTopic != "" {
		routes[s.SolarTopic] = route{category: telemetry.Solar, path: s.SolarPath}
	}
	if s.GridTopic != "" {
		// Same topic for both keeps solar, as the first exact match
		if _, dup := routes[s.GridTopic]; !dup {
			routes[s.GridTopic] = route{category: telemetry.Grid, path: s.GridPath}
		}
	}

	m.routeMu.Lock()
	m.routes = routes
	m.routeMu.Unlock()

	subscribed := false
	for _, sub := range []struct {
		category telemetry.Category
		topic    string
	}{
		{telemetry.Solar, s.SolarTopic},
		{telemetry.Grid, s.GridTopic},
	} {
		if sub.topic == "" {
			continue
		}
		err := m.session.Subscribe(sub.topic, 0, m.HandleMessage)
		if err != nil {
			m.logf("[MQTT] Subscribe %s '%s': FAIL (%v)", sub.category, sub.topic, err)
			m.events.Add(events.EventMQTTSubscribeFail, sub.category.String(), false, sub.topic)
			continue
		}
		m.logf("[MQTT] Subscribe %s '%s': OK", sub.category, sub.topic)
		m.events.Add(events.EventMQTTSubscribed, sub.category.String(), true, sub.topic)
		subscribed = true
	}

	m.subscriptionsActive = subscribed
}

func (m *Manager) publishHealthIfDue(now time.Time) {
	interval := time.Duration(m.current.IntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	if now.Sub(m.lastHealthPublish) < interval {
		return
	}
	if m.publishHealth(now) {
		m.lastHealthPublish = now
	}
}

// publishHealth sends the retained health payload and reports success.
// An oversized payload is skipped, not retried.
func (m *Manager) publishHealth(now time.Time) bool {
	if m.health == nil {
		return false
	}

	data, err := m.health.HealthPayload(now, m.topics.Device)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			m.logf("[MQTT] Error: health payload overflow, publish skipped: %v", err)
		} else {
			m.logf("[MQTT] Error: failed to build health payload: %v", err)
		}
		return false
	}

	if err := m.session.Publish(m.topics.Health, 0, true, data); err != nil {
		m.logf("[MQTT] Failed to publish health: %v", err)
		return false
	}
	return true
}

// resetSession disconnects and clears every retry timer
func (m *Manager) resetSession(reason string) {
	if m.connected || m.session.IsConnected() {
		m.logf("[MQTT] Disconnecting: %s", reason)
		if m.session.IsConnected() {
			if err := m.session.Publish(m.topics.Availability, 0, true, []byte(PayloadOffline)); err != nil {
				m.logf("[MQTT] Failed to publish availability: %v", err)
			}
		}
		m.session.Disconnect()
		m.events.Add(events.EventMQTTDisconnected, "", true, reason)
	}

	m.connected = false
	if m.state != StateDisabled {
		m.state = StateIdle
	}
	m.subscriptionsActive = false
	m.attempted = false
	m.lastReconnectAttempt = time.Time{}
	m.subscribeAttempted = false
	m.lastSubscribeAttempt = time.Time{}
}

// Shutdown marks the device offline and disconnects
func (m *Manager) Shutdown() {
	m.resetSession("shutdown")
	m.publishStatus()
}

// HandleMessage routes an incoming message to the telemetry store. Topics
// are matched exactly; a payload that does not decode is stored as NaN.
func (m *Manager) HandleMessage(topic string, body []byte) {
	if len(body) == 0 {
		return
	}

	m.routeMu.RLock()
	r, ok := m.routes[topic]
	m.routeMu.RUnlock()
	if !ok {
		return
	}

	m.messages.Add(1)

	value, ok := payload.Decode(body, r.path)
	if !ok {
		value = math.NaN()
		m.decodeFailures.Add(1)
		m.logf("[MQTT] %s: could not decode payload on '%s' (path '%s'), storing no-data", r.category, topic, r.path)
		m.events.Add(events.EventDecodeFailed, r.category.String(), false, topic)
	}

	m.store.Set(r.category, value, m.now())
}

// Status returns the state as of the last Loop
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	st := m.status
	st.MessagesReceived = m.messages.Load()
	st.DecodeFailures = m.decodeFailures.Load()
	return st
}

func (m *Manager) publishStatus() {
	st := Status{
		Enabled:              m.state != StateDisabled,
		State:                m.state,
		Connected:            m.connected,
		SubscriptionsActive:  m.subscriptionsActive,
		DiscoveryPublished:   m.discoveryPublished,
		LastReconnectAttempt: m.lastReconnectAttempt,
		LastHealthPublish:    m.lastHealthPublish,
		ConnectAttempts:      m.connectAttempts,
	}
	if m.state != StateDisabled {
		shown := m.current
		if m.connected {
			shown = m.active
		}
		st.Broker = shown.BrokerURL()
		st.ClientID = SanitizeName(shown.DeviceName)
		st.SolarTopic = shown.SolarTopic
		st.GridTopic = shown.GridTopic
	}

	m.statusMu.Lock()
	m.status = st
	m.statusMu.Unlock()
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
