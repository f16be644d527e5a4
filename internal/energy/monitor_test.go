package energy

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energymon/internal/storage"
	"energymon/internal/telemetry"
)

type staticSettings struct {
	s Settings
}

func (st *staticSettings) Current() Settings {
	return st.s
}

func TestMonitorBuildsFrame(t *testing.T) {
	store := telemetry.NewStore()
	m := NewMonitor(store, &staticSettings{s: DefaultSettings()}, nil)
	now := time.Unix(1000, 0)

	store.Set(telemetry.Solar, 1.2, now)
	store.Set(telemetry.Grid, -0.4, now)

	f := m.Tick(now)
	assert.Equal(t, "1.20", f.Solar.Label)
	assert.Equal(t, "-0.40", f.Grid.Label)
	assert.Equal(t, "0.80", f.Home.Label)
	assert.Equal(t, ColorWhite, f.Solar.Color)
	assert.Equal(t, ColorWhite, f.Home.Color)
	assert.Equal(t, ColorGreen, f.Grid.Color)
	assert.InDelta(t, 0.4, f.Solar.BarFraction, 1e-9)
	require.NotNil(t, f.Solar.KW)
	assert.Equal(t, 1.2, *f.Solar.KW)
	assert.True(t, f.SolarToHome)
	assert.Equal(t, GridFlowExport, f.GridFlow)
	assert.False(t, f.AlarmActive)
	assert.Equal(t, f, m.Latest())
}

func TestMonitorNoData(t *testing.T) {
	m := NewMonitor(telemetry.NewStore(), &staticSettings{s: DefaultSettings()}, nil)
	f := m.Tick(time.Unix(1, 0))

	for _, cf := range []CategoryFrame{f.Solar, f.Home, f.Grid} {
		assert.Equal(t, "--", cf.Label)
		assert.Nil(t, cf.KW)
		assert.Equal(t, ColorNoData, cf.Color)
		assert.Equal(t, 0.0, cf.BarFraction)
	}
	assert.False(t, f.SolarToHome)
	assert.Equal(t, GridFlowNone, f.GridFlow)
}

func TestMonitorRefreshGate(t *testing.T) {
	store := telemetry.NewStore()
	src := &staticSettings{s: DefaultSettings()}
	m := NewMonitor(store, src, nil)
	start := time.Unix(1000, 0)

	store.Set(telemetry.Solar, 0.1, start)
	f := m.Tick(start)
	assert.Equal(t, ColorGreen, f.Solar.Color)

	// A settings change without new data waits for the periodic refresh.
	src.s.Solar.Good = 0x123456
	f = m.Tick(start.Add(100 * time.Millisecond))
	assert.Equal(t, ColorGreen, f.Solar.Color)

	f = m.Tick(start.Add(RefreshInterval))
	assert.Equal(t, RGB(0x123456), f.Solar.Color)

	// New data refreshes immediately.
	src.s.Solar.Good = 0x654321
	store.Set(telemetry.Solar, 0.2, start)
	f = m.Tick(start.Add(RefreshInterval + time.Millisecond))
	assert.Equal(t, RGB(0x654321), f.Solar.Color)
}

func TestMonitorAlarmLifecycle(t *testing.T) {
	store := telemetry.NewStore()
	s := DefaultSettings()
	s.Alarm.ClearDelayMs = 0
	s.Alarm.PulseCycleMs = 200
	m := NewMonitor(store, &staticSettings{s: s}, nil)

	var seen []Transition
	m.OnTransition = func(tr Transition) { seen = append(seen, tr) }

	now := time.Unix(1000, 0)
	store.Set(telemetry.Solar, 3.5, now)
	f := m.Tick(now)
	assert.True(t, f.AlarmActive)
	assert.True(t, f.Warning)
	assert.Equal(t, AlarmActive, f.Solar.Alarm)
	assert.Equal(t, ColorRed, f.PeakColor)

	now = now.Add(100 * time.Millisecond)
	m.Tick(now)
	assert.Equal(t, 255, m.Latest().PulseLevel)
	assert.Equal(t, ColorRed, m.Latest().Background, "full pulse shows the peak color")

	store.Set(telemetry.Solar, 1.0, now)
	now = now.Add(50 * time.Millisecond)
	f = m.Tick(now)
	assert.False(t, f.AlarmActive)
	assert.False(t, f.Warning, "warning does not latch")
	assert.True(t, f.Exiting)
	assert.Equal(t, AlarmExiting, f.Solar.Alarm)
	assert.Equal(t, Blend(ColorBlack, ColorRed, f.PulseLevel), f.Background)

	now = now.Add(100 * time.Millisecond)
	f = m.Tick(now)
	assert.False(t, f.Exiting)
	assert.Equal(t, AlarmOff, f.Solar.Alarm)
	assert.Equal(t, 0, f.PulseLevel)
	assert.Equal(t, ColorBlack, f.Background)

	require.Len(t, seen, 3)
	assert.Equal(t, AlarmActive, seen[0].To)
	assert.Equal(t, AlarmExiting, seen[1].To)
	assert.Equal(t, AlarmOff, seen[2].To)
}

func TestBarFraction(t *testing.T) {
	assert.Equal(t, 0.0, BarFraction(math.NaN(), 3))
	assert.InDelta(t, 0.5, BarFraction(-1.5, 3), 1e-9)
	assert.Equal(t, 1.0, BarFraction(10, 3))
	assert.InDelta(t, 1.0/3, BarFraction(1, 0), 1e-9, "non-positive scale uses 3 kW")
	assert.InDelta(t, 0.1, BarFraction(1, 10), 1e-9)
}

func TestFormatKW(t *testing.T) {
	assert.Equal(t, "--", FormatKW(math.NaN()))
	assert.Equal(t, "3.14", FormatKW(3.14159))
	assert.Equal(t, "-0.50", FormatKW(-0.5))
}

func TestSettingsStorePersists(t *testing.T) {
	st, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "energy.db"))
	require.NoError(t, err)
	defer st.Close()

	ss := NewSettingsStore(st, nil)
	assert.Equal(t, DefaultSettings(), ss.Current())

	updated, err := ss.Apply(SettingsPatch{Alarm: &AlarmPatch{ClearDelayMs: ptr(1200)}})
	require.NoError(t, err)
	assert.Equal(t, 1200, updated.Alarm.ClearDelayMs)

	reloaded := NewSettingsStore(st, nil)
	assert.Equal(t, 1200, reloaded.Current().Alarm.ClearDelayMs)

	reset, err := reloaded.Reset()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), reset)

	// Reset removes the stored document rather than writing defaults
	var stored Settings
	assert.ErrorIs(t, st.GetJSON(StorageNamespace, settingsKey, &stored), storage.ErrNotFound)
	assert.Equal(t, DefaultSettings(), NewSettingsStore(st, nil).Current())
}

func TestSettingsStoreNormalizesOnLoad(t *testing.T) {
	st, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "energy.db"))
	require.NoError(t, err)
	defer st.Close()

	bad := DefaultSettings()
	bad.Solar.T = [3]int32{3000, 2000, 1000}
	bad.GridBarMaxKW = -1
	require.NoError(t, st.SetJSON(StorageNamespace, settingsKey, bad))

	ss := NewSettingsStore(st, nil)
	assert.Equal(t, DefaultSettings(), ss.Current())

	var stored Settings
	require.NoError(t, st.GetJSON(StorageNamespace, settingsKey, &stored))
	assert.Equal(t, DefaultSettings(), stored, "repaired settings are written back")
}

func TestSettingsStoreWithoutStorage(t *testing.T) {
	ss := NewSettingsStore(nil, nil)
	got, err := ss.Replace(Settings{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBarMaxKW, got.SolarBarMaxKW)
	assert.Equal(t, MinPulseCycleMs, got.Alarm.PulseCycleMs)
}
