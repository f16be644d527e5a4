package mqtt

// SensorConfig describes one Home Assistant entity fed from the health
// state topic
type SensorConfig struct {
	SensorID      string
	Name          string
	Component     string // "sensor" or "binary_sensor"
	Unit          string
	DeviceClass   string
	StateClass    string
	ValueTemplate string
	Icon          string

	// Binary sensors only
	PayloadOn  string
	PayloadOff string
}

// DeviceInfo groups the entities in Home Assistant
type DeviceInfo struct {
	Identifiers  []string
	Name         string
	Model        string
	Manufacturer string
}

// HealthSensors lists the entities published for the health payload
var HealthSensors = []SensorConfig{
	{
		SensorID:      "solar_power",
		Name:          "Solar Power",
		Component:     "sensor",
		Unit:          "kW",
		DeviceClass:   "power",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.solar_kw }}",
	},
	{
		SensorID:      "grid_power",
		Name:          "Grid Power",
		Component:     "sensor",
		Unit:          "kW",
		DeviceClass:   "power",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.grid_kw }}",
	},
	{
		SensorID:      "home_power",
		Name:          "Home Power",
		Component:     "sensor",
		Unit:          "kW",
		DeviceClass:   "power",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.home_kw }}",
	},
	{
		SensorID:      "alarm",
		Name:          "Energy Alarm",
		Component:     "binary_sensor",
		DeviceClass:   "problem",
		ValueTemplate: "{{ 'ON' if value_json.alarm_active else 'OFF' }}",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
	},
	{
		SensorID:      "warning",
		Name:          "Energy Warning",
		Component:     "binary_sensor",
		ValueTemplate: "{{ 'ON' if value_json.warning else 'OFF' }}",
		Icon:          "mdi:flash-alert",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
	},
	{
		SensorID:      "uptime",
		Name:          "Uptime",
		Component:     "sensor",
		Unit:          "s",
		DeviceClass:   "duration",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.uptime_seconds }}",
		Icon:          "mdi:timer-outline",
	},
	{
		SensorID:      "heap",
		Name:          "Heap In Use",
		Component:     "sensor",
		Unit:          "B",
		DeviceClass:   "data_size",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.heap_alloc_bytes }}",
		Icon:          "mdi:memory",
	},
}
