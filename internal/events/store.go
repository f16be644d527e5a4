// Package events keeps a bounded in-memory log of alarm and connection
// events for the status API.
package events

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of events kept by NewStore(0)
const DefaultCapacity = 100

// EventType identifies what happened
type EventType string

const (
	// Alarm events
	EventAlarmEngaged EventType = "alarm_engaged"
	EventAlarmExiting EventType = "alarm_exiting"
	EventAlarmCleared EventType = "alarm_cleared"

	// Connection events
	EventMQTTConnected     EventType = "mqtt_connected"
	EventMQTTConnectFailed EventType = "mqtt_connect_failed"
	EventMQTTDisconnected  EventType = "mqtt_disconnected"
	EventMQTTSubscribed    EventType = "mqtt_subscribed"
	EventMQTTSubscribeFail EventType = "mqtt_subscribe_failed"

	// Telemetry events
	EventDecodeFailed EventType = "decode_failed"

	// Settings events
	EventSettingsUpdated EventType = "settings_updated"
)

// Event is one log entry
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category,omitempty"`
	Success   bool      `json:"success"`
	Details   string    `json:"details,omitempty"`
}

// Store holds events in memory with a fixed capacity (ring buffer).
// A nil *Store discards everything.
type Store struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
	nextID  int64
	now     func() time.Time
}

// NewStore creates an event store; maxSize <= 0 selects DefaultCapacity
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = DefaultCapacity
	}
	return &Store{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Add appends an event, dropping the oldest one when full
func (s *Store) Add(eventType EventType, category string, success bool, details string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event := Event{
		ID:        s.nextID,
		Type:      eventType,
		Timestamp: s.now(),
		Category:  category,
		Success:   success,
		Details:   details,
	}

	if len(s.events) >= s.maxSize {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event)
}

// GetAll returns all events (newest first)
func (s *Store) GetAll() []Event {
	return s.GetLast(s.Count())
}

// GetLast returns the last N events (newest first)
func (s *Store) GetLast(n int) []Event {
	if s == nil {
		return []Event{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.events) {
		n = len(s.events)
	}
	if n < 0 {
		n = 0
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = s.events[len(s.events)-1-i]
	}
	return result
}

// GetSince returns events newer than the given ID (newest first)
func (s *Store) GetSince(lastID int64) []Event {
	if s == nil {
		return []Event{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Event{}
	for i := len(s.events) - 1; i >= 0 && s.events[i].ID > lastID; i-- {
		result = append(result, s.events[i])
	}
	return result
}

// Count returns the number of events held
func (s *Store) Count() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastID returns the ID of the most recent event
func (s *Store) LastID() int64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
