package energy

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"energymon/internal/telemetry"
)

// RefreshInterval forces a frame refresh when no new data arrived
const RefreshInterval = 500 * time.Millisecond

// Flow arrow directions for the grid
const (
	GridFlowNone   = ""
	GridFlowImport = "import"
	GridFlowExport = "export"
)

// SettingsSource provides the settings used on every tick
type SettingsSource interface {
	Current() Settings
}

// CategoryFrame is what the renderer draws for one category
type CategoryFrame struct {
	Category    string     `json:"category"`
	KW          *float64   `json:"kw"`
	Label       string     `json:"label"`
	Color       RGB        `json:"color"`
	BarFraction float64    `json:"barFraction"`
	Alarm       AlarmState `json:"alarm"`
}

// Frame is the renderer-facing output of one tick
type Frame struct {
	At          time.Time     `json:"at"`
	Solar       CategoryFrame `json:"solar"`
	Home        CategoryFrame `json:"home"`
	Grid        CategoryFrame `json:"grid"`
	SolarToHome bool          `json:"solarToHome"`
	GridFlow    string        `json:"gridFlow"`

	// Warning is set while any category is at or past its warning
	// threshold; it does not latch
	Warning bool `json:"warning"`

	AlarmActive bool `json:"alarmActive"`
	Exiting     bool `json:"exiting"`
	PeakColor   RGB  `json:"peakColor"`
	PulseLevel  int  `json:"pulseLevel"`
	Background  RGB  `json:"background"`
}

// Monitor is the consumer side: on each tick it drains the telemetry store,
// advances the alarm engine and the pulse driver, and builds a Frame.
type Monitor struct {
	store    *telemetry.Store
	settings SettingsSource
	logger   *log.Logger

	alarm *Alarm
	pulse *Pulse

	lastTick    time.Time
	lastRefresh time.Time
	refreshed   bool

	// OnTransition is called for every alarm state change, from the
	// ticking goroutine
	OnTransition func(Transition)

	mu     sync.RWMutex
	latest Frame
}

// NewMonitor creates a monitor reading from store
func NewMonitor(store *telemetry.Store, settings SettingsSource, logger *log.Logger) *Monitor {
	return &Monitor{
		store:    store,
		settings: settings,
		logger:   logger,
		alarm:    NewAlarm(),
		pulse:    NewPulse(),
	}
}

// Tick runs one consumer iteration. It must be called from a single
// goroutine.
func (m *Monitor) Tick(now time.Time) Frame {
	snap := m.store.Get(true)
	s := m.settings.Current()

	transitions := m.alarm.Evaluate(s, snap, now)

	var elapsed time.Duration
	if !m.lastTick.IsZero() {
		elapsed = now.Sub(m.lastTick)
	}
	m.lastTick = now

	level, exited := m.pulse.Step(elapsed, m.alarm.Active(), m.alarm.Exiting(), s.Alarm)
	if exited {
		transitions = append(transitions, m.alarm.FinishExit()...)
		m.pulse.Reset()
	}

	for _, tr := range transitions {
		m.report(tr)
	}

	m.mu.RLock()
	frame := m.latest
	m.mu.RUnlock()

	updated := snap.Solar.Updated || snap.Grid.Updated
	if updated || !m.refreshed || now.Sub(m.lastRefresh) >= RefreshInterval {
		frame = buildFrame(s, snap)
		m.lastRefresh = now
		m.refreshed = true
	}

	frame.At = now
	for _, c := range telemetry.Categories {
		frame.category(c).Alarm = m.alarm.State(c)
	}
	frame.AlarmActive = m.alarm.Active()
	frame.Exiting = m.alarm.Exiting()
	frame.PeakColor, _ = m.alarm.Peak()
	frame.PulseLevel = level
	frame.Background = Blend(ColorBlack, frame.PeakColor, level)

	m.mu.Lock()
	m.latest = frame
	m.mu.Unlock()

	return frame
}

// Latest returns the most recent frame; safe for concurrent use
func (m *Monitor) Latest() Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Monitor) report(tr Transition) {
	if m.logger != nil {
		m.logger.Printf("[Energy] %s alarm %s -> %s (%s)", tr.Category, tr.From, tr.To, FormatKW(tr.Value))
	}
	if m.OnTransition != nil {
		m.OnTransition(tr)
	}
}

func (f *Frame) category(c telemetry.Category) *CategoryFrame {
	switch c {
	case telemetry.Solar:
		return &f.Solar
	case telemetry.Home:
		return &f.Home
	default:
		return &f.Grid
	}
}

func buildFrame(s Settings, snap telemetry.Snapshot) Frame {
	var f Frame
	for _, c := range telemetry.Categories {
		v := snap.Value(c)
		cf := f.category(c)
		cf.Category = c.String()
		cf.Label = FormatKW(v)
		cf.Color = Classify(*s.For(c), v, UseAbsolute(c))
		cf.BarFraction = BarFraction(v, s.BarMaxKW(c))
		if !math.IsNaN(v) {
			kw := v
			cf.KW = &kw
		}
	}

	f.Warning = HasWarning(s, snap)

	solar := snap.Value(telemetry.Solar)
	f.SolarToHome = !math.IsNaN(solar) && solar >= 0.01

	grid := snap.Value(telemetry.Grid)
	switch {
	case math.IsNaN(grid):
		f.GridFlow = GridFlowNone
	case grid > 0:
		f.GridFlow = GridFlowImport
	default:
		f.GridFlow = GridFlowExport
	}
	return f
}

// FormatKW renders a kW value with two decimals, or "--" for no data
func FormatKW(v float64) string {
	if math.IsNaN(v) {
		return "--"
	}
	return fmt.Sprintf("%.2f", v)
}

// BarFraction returns clamp(|v|*1000, 0, max)/max where max is the bar
// scale in watts. A non-positive scale falls back to 3 kW.
func BarFraction(v, maxKW float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	maxW := math.Round(maxKW * 1000)
	if !(maxW > 0) || math.IsInf(maxW, 0) {
		maxW = DefaultBarMaxKW * 1000
	}
	w := math.Abs(v) * 1000
	if w > maxW {
		w = maxW
	}
	return w / maxW
}
