package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Discovery builds and publishes Home Assistant MQTT discovery configs for
// the health sensors
type Discovery struct {
	topics  Topics
	device  DeviceInfo
	sensors []SensorConfig
	logger  *log.Logger

	// Cache of pre-generated discovery configs
	mu      sync.RWMutex
	configs map[string][]byte
}

// NewDiscovery creates a discovery builder for the device behind topics
func NewDiscovery(topics Topics, logger *log.Logger) *Discovery {
	return &Discovery{
		topics:  topics,
		sensors: HealthSensors,
		logger:  logger,
		device: DeviceInfo{
			Identifiers:  []string{"energymon_" + topics.Device},
			Name:         topics.Device,
			Model:        "Energy Monitor",
			Manufacturer: "energymon",
		},
		configs: make(map[string][]byte),
	}
}

// Device returns the sanitized device name the configs are built for
func (d *Discovery) Device() string {
	return d.topics.Device
}

// Topic returns the discovery topic of a sensor:
// homeassistant/<component>/<device>/<sensor>/config
func (d *Discovery) Topic(cfg SensorConfig) string {
	component := cfg.Component
	if component == "" {
		component = "sensor"
	}
	return "homeassistant/" + component + "/" + d.topics.Device + "/" + cfg.SensorID + "/config"
}

// Config returns the discovery JSON of a sensor
func (d *Discovery) Config(cfg SensorConfig) ([]byte, error) {
	d.mu.RLock()
	if data, ok := d.configs[cfg.SensorID]; ok {
		d.mu.RUnlock()
		return data, nil
	}
	d.mu.RUnlock()

	doc := map[string]interface{}{
		"name":                  cfg.Name,
		"unique_id":             d.topics.Device + "_" + cfg.SensorID,
		"state_topic":           d.topics.Health,
		"value_template":        cfg.ValueTemplate,
		"availability_topic":    d.topics.Availability,
		"payload_available":     PayloadOnline,
		"payload_not_available": PayloadOffline,
		"device": map[string]interface{}{
			"identifiers":  d.device.Identifiers,
			"name":         d.device.Name,
			"model":        d.device.Model,
			"manufacturer": d.device.Manufacturer,
		},
	}
	if cfg.Unit != "" {
		doc["unit_of_measurement"] = cfg.Unit
	}
	if cfg.DeviceClass != "" {
		doc["device_class"] = cfg.DeviceClass
	}
	if cfg.StateClass != "" {
		doc["state_class"] = cfg.StateClass
	}
	if cfg.Icon != "" {
		doc["icon"] = cfg.Icon
	}
	if cfg.PayloadOn != "" {
		doc["payload_on"] = cfg.PayloadOn
		doc["payload_off"] = cfg.PayloadOff
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal discovery config for %s: %w", cfg.SensorID, err)
	}

	d.mu.Lock()
	d.configs[cfg.SensorID] = data
	d.mu.Unlock()

	return data, nil
}

// Publish sends every sensor's retained discovery config. Failures are
// logged per sensor and returned joined.
func (d *Discovery) Publish(s Session) error {
	var errs []error
	for _, cfg := range d.sensors {
		data, err := d.Config(cfg)
		if err == nil {
			err = s.Publish(d.Topic(cfg), 1, true, data)
		}
		if err != nil {
			if d.logger != nil {
				d.logger.Printf("[MQTT] Failed to publish discovery for %s: %v", cfg.SensorID, err)
			}
			errs = append(errs, err)
		}
	}

	if d.logger != nil {
		d.logger.Printf("[MQTT] Published discovery config for %d sensors", len(d.sensors)-len(errs))
	}
	return errors.Join(errs...)
}
