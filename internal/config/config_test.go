package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr())
	assert.Equal(t, DefaultDBPath, cfg.DBPath())
	assert.Equal(t, DefaultDeviceName, cfg.DeviceName())

	m := cfg.MQTTSettings()
	assert.Empty(t, m.Host)
	assert.Equal(t, DefaultMQTTPort, m.Port)
	assert.Equal(t, DefaultMQTTIntervalSeconds, m.IntervalSeconds)
	assert.Equal(t, ".", m.SolarValuePath)
	assert.Equal(t, ".", m.GridValuePath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), EnvMQTTHost)
	assert.Contains(t, string(data), EnvAddr)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"# broker",
		"ENERGYMON_ADDR=127.0.0.1:9000",
		"ENERGYMON_DEVICE_NAME=Roof Display",
		"ENERGYMON_MQTT_HOST=broker.local",
		"ENERGYMON_MQTT_PORT=8883",
		"ENERGYMON_MQTT_USERNAME=meter",
		"ENERGYMON_MQTT_PASSWORD='s3cret'",
		"ENERGYMON_MQTT_USE_TLS=yes",
		"ENERGYMON_MQTT_INTERVAL_SECONDS=0",
		"ENERGYMON_MQTT_TOPIC_SOLAR=home/solar",
		"ENERGYMON_MQTT_TOPIC_GRID=home/grid",
		"ENERGYMON_MQTT_SOLAR_VALUE_PATH=data.power",
		"ENERGYMON_MQTT_GRID_VALUE_PATH=",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "Roof Display", cfg.DeviceName())
	assert.Equal(t, MQTT{
		Host:            "broker.local",
		Port:            8883,
		Username:        "meter",
		Password:        "s3cret",
		UseTLS:          true,
		IntervalSeconds: 0,
		TopicSolar:      "home/solar",
		TopicGrid:       "home/grid",
		SolarValuePath:  "data.power",
		GridValuePath:   ".",
	}, cfg.MQTTSettings())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "bad address", line: "ENERGYMON_ADDR=nonsense"},
		{name: "port out of range", line: "ENERGYMON_ADDR=:70000"},
		{name: "mqtt port negative", line: "ENERGYMON_MQTT_PORT=-1"},
		{name: "interval negative", line: "ENERGYMON_MQTT_INTERVAL_SECONDS=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			require.NoError(t, os.WriteFile(path, []byte(tt.line+"\n"), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSettersReportChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	cfg, err := Load(path)
	require.NoError(t, err)

	changed, err := cfg.SetMQTTBroker(" broker ", 1883)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = cfg.SetMQTTBroker("broker", 1883)
	require.NoError(t, err)
	assert.False(t, changed, "same value is not a change")

	_, err = cfg.SetMQTTBroker("broker", 70000)
	assert.Error(t, err)
	assert.Equal(t, 1883, cfg.MQTTSettings().Port, "invalid port must not be stored")

	changed, err = cfg.SetMQTTCredentials("user", "pw")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = cfg.SetMQTTUseTLS(true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = cfg.SetMQTTTopics("a/solar", "a/grid", "", " value ")
	require.NoError(t, err)
	assert.True(t, changed)
	m := cfg.MQTTSettings()
	assert.Equal(t, ".", m.SolarValuePath)
	assert.Equal(t, "value", m.GridValuePath)

	changed, err = cfg.SetDeviceName("Kitchen")
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = cfg.SetDeviceName("  ")
	assert.Error(t, err)

	require.NoError(t, cfg.SetMQTTInterval(15))
	assert.Error(t, cfg.SetMQTTInterval(-1))

	// Everything survives a reload from disk
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MQTTSettings(), reloaded.MQTTSettings())
	assert.Equal(t, "Kitchen", reloaded.DeviceName())
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ENERGYMON_MQTT_HOST=other\n"), 0o600))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "other", cfg.MQTTSettings().Host)
	assert.Equal(t, DefaultAddr, cfg.Addr())
}

func TestStringHidesPassword(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	_, err = cfg.SetMQTTCredentials("user", "hunter2")
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "[set]")
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", " on "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"false", "0", "no", "", "maybe"} {
		assert.False(t, parseBool(v), v)
	}
}

func TestReloadKeepsValuesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.SetMQTTBroker("good", 1883)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ENERGYMON_MQTT_PORT=99999\nENERGYMON_MQTT_HOST=bad\n"), 0o600))
	assert.Error(t, cfg.Reload())
	assert.Equal(t, "good", cfg.MQTTSettings().Host)
}
