package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"time"

	"energymon/internal/telemetry"
)

// MaxPacketSize bounds the health payload
const MaxPacketSize = 1024

// HealthSource produces the retained health/state payload for the device
// the session is connected as
type HealthSource interface {
	HealthPayload(now time.Time, device string) ([]byte, error)
}

// AlarmFunc reports the latched alarm and the non-latching warning
type AlarmFunc func() (active, warning bool)

// Health is the device status published on the health topic
type Health struct {
	Device          string   `json:"device"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	Goroutines      int      `json:"goroutines"`
	HeapAllocBytes  uint64   `json:"heap_alloc_bytes"`
	SolarKW         *float64 `json:"solar_kw"`
	GridKW          *float64 `json:"grid_kw"`
	HomeKW          *float64 `json:"home_kw"`
	SolarAgeSeconds *float64 `json:"solar_age_seconds"`
	GridAgeSeconds  *float64 `json:"grid_age_seconds"`
	AlarmActive     bool     `json:"alarm_active"`
	Warning         bool     `json:"warning"`
}

// HealthReporter builds Health from the telemetry store and process stats
type HealthReporter struct {
	store   *telemetry.Store
	alarm   AlarmFunc
	started time.Time
}

// NewHealthReporter creates a reporter. alarm may be nil.
func NewHealthReporter(store *telemetry.Store, alarm AlarmFunc, started time.Time) *HealthReporter {
	return &HealthReporter{
		store:   store,
		alarm:   alarm,
		started: started,
	}
}

// Build collects the current health values. The telemetry update flags
// are left untouched.
func (h *HealthReporter) Build(now time.Time, device string) Health {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	health := Health{
		Device:         device,
		UptimeSeconds:  int64(now.Sub(h.started) / time.Second),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
	}

	if h.store != nil {
		snap := h.store.Get(false)
		health.SolarKW = kwValue(snap.Solar.Value)
		health.GridKW = kwValue(snap.Grid.Value)
		health.HomeKW = kwValue(snap.Home())
		health.SolarAgeSeconds = age(now, snap.Solar.UpdatedAt)
		health.GridAgeSeconds = age(now, snap.Grid.UpdatedAt)
	}
	if h.alarm != nil {
		health.AlarmActive, health.Warning = h.alarm()
	}
	return health
}

// HealthPayload returns the JSON health payload, or ErrPayloadTooLarge if
// it does not fit in MaxPacketSize
func (h *HealthReporter) HealthPayload(now time.Time, device string) ([]byte, error) {
	data, err := json.Marshal(h.Build(now, device))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal health: %w", err)
	}
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(data), MaxPacketSize)
	}
	return data, nil
}

func kwValue(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := math.Round(v*1000) / 1000
	return &r
}

func age(now, at time.Time) *float64 {
	if at.IsZero() {
		return nil
	}
	s := math.Round(now.Sub(at).Seconds()*10) / 10
	return &s
}
