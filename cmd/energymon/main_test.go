package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energymon/internal/config"
	"energymon/internal/energy"
	"energymon/internal/events"
	"energymon/internal/storage"
	"energymon/internal/telemetry"
)

func TestRecordTransition(t *testing.T) {
	store := events.NewStore(0)

	recordTransition(store, energy.Transition{Category: telemetry.Solar, From: energy.AlarmOff, To: energy.AlarmActive, Value: 3.2})
	recordTransition(store, energy.Transition{Category: telemetry.Solar, From: energy.AlarmActive, To: energy.AlarmExiting, Value: 2.5})
	recordTransition(store, energy.Transition{Category: telemetry.Grid, From: energy.AlarmExiting, To: energy.AlarmOff, Value: math.NaN()})

	all := store.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, events.EventAlarmCleared, all[0].Type)
	assert.Equal(t, "grid", all[0].Category)
	assert.Contains(t, all[0].Details, "--")
	assert.Equal(t, events.EventAlarmExiting, all[1].Type)
	assert.Equal(t, events.EventAlarmEngaged, all[2].Type)
	assert.Equal(t, "solar", all[2].Category)
	assert.Contains(t, all[2].Details, "3.20 kW")
}

func TestUpdateSettingsFromPatchFile(t *testing.T) {
	dir := t.TempDir()
	st, err := storage.NewBoltStorage(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer st.Close()

	patchPath := filepath.Join(dir, "patch.json")
	require.NoError(t, os.WriteFile(patchPath, []byte(`{
		"solar": {"warning": "#00FF00", "t2Kw": 4.5},
		"gridBarMaxKw": 250,
		"alarm": {"clearDelayMs": 1500}
	}`), 0o600))

	settings := energy.NewSettingsStore(st, nil)
	evs := events.NewStore(0)
	require.NoError(t, updateSettings(settings, evs, false, patchPath))

	cur := settings.Current()
	assert.Equal(t, energy.RGB(0x00FF00), cur.Solar.Warning)
	assert.Equal(t, int32(4500), cur.Solar.T[2])
	assert.Equal(t, energy.MaxKW, cur.GridBarMaxKW)
	assert.Equal(t, 1500, cur.Alarm.ClearDelayMs)
	assert.Equal(t, 1, evs.Count())

	// Persisted: a fresh store sees the patched values
	assert.Equal(t, cur, energy.NewSettingsStore(st, nil).Current())

	require.NoError(t, updateSettings(settings, evs, true, ""))
	assert.Equal(t, energy.DefaultSettings(), settings.Current())
	assert.Equal(t, 2, evs.Count())
}

func TestUpdateSettingsBadPatch(t *testing.T) {
	dir := t.TempDir()
	settings := energy.NewSettingsStore(nil, nil)

	assert.Error(t, updateSettings(settings, nil, false, filepath.Join(dir, "missing.json")))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"solar": {"warning": "#zz"}}`), 0o600))
	assert.Error(t, updateSettings(settings, nil, false, bad))
	assert.Equal(t, energy.DefaultSettings(), settings.Current())
}

func TestBrokerSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"ENERGYMON_DEVICE_NAME=Roof\n"+
			"ENERGYMON_MQTT_HOST=broker\n"+
			"ENERGYMON_MQTT_PORT=0\n"+
			"ENERGYMON_MQTT_TOPIC_SOLAR=s\n"+
			"ENERGYMON_MQTT_GRID_VALUE_PATH=power\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	s := brokerSettings(cfg)
	assert.True(t, s.Enabled())
	assert.Equal(t, "tcp://broker:1883", s.BrokerURL())
	assert.Equal(t, "Roof", s.DeviceName)
	assert.Equal(t, "s", s.SolarTopic)
	assert.Equal(t, ".", s.SolarPath)
	assert.Equal(t, "power", s.GridPath)
}
