package main

import (
	"flag"
	"fmt"

	"energymon/internal/config"
)

// overrides are command-line values that replace the .env settings. Only
// flags given explicitly are applied, and applied values are saved back to
// the .env file.
type overrides struct {
	set map[string]bool

	addr       string
	deviceName string
	host       string
	port       int
	username   string
	password   string
	useTLS     bool
	interval   int
	solarTopic string
	gridTopic  string
	solarPath  string
	gridPath   string
}

func registerOverrides(fs *flag.FlagSet) *overrides {
	o := &overrides{set: make(map[string]bool)}
	fs.StringVar(&o.addr, "addr", "", "Status server listen address")
	fs.StringVar(&o.deviceName, "device-name", "", "Device name used for MQTT topics and the client ID")
	fs.StringVar(&o.host, "mqtt-host", "", "MQTT broker host (empty disables MQTT)")
	fs.IntVar(&o.port, "mqtt-port", 0, "MQTT broker port (0 selects 1883)")
	fs.StringVar(&o.username, "mqtt-username", "", "MQTT username")
	fs.StringVar(&o.password, "mqtt-password", "", "MQTT password")
	fs.BoolVar(&o.useTLS, "mqtt-tls", false, "Connect to the broker over TLS")
	fs.IntVar(&o.interval, "mqtt-interval", 0, "Health publish interval in seconds (0 disables periodic publishing)")
	fs.StringVar(&o.solarTopic, "topic-solar", "", "MQTT topic carrying solar power")
	fs.StringVar(&o.gridTopic, "topic-grid", "", "MQTT topic carrying grid power")
	fs.StringVar(&o.solarPath, "solar-path", "", "Value path inside solar payloads")
	fs.StringVar(&o.gridPath, "grid-path", "", "Value path inside grid payloads")
	return o
}

// collect records which flags were given; call after fs.Parse
func (o *overrides) collect(fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		o.set[f.Name] = true
	})
}

func (o *overrides) any(names ...string) bool {
	for _, n := range names {
		if o.set[n] {
			return true
		}
	}
	return false
}

// apply writes the given flags into cfg. Paired settings keep their stored
// counterpart when only one half is given.
func (o *overrides) apply(cfg *config.Config) error {
	if o.set["addr"] {
		if err := cfg.SetAddr(o.addr); err != nil {
			return fmt.Errorf("invalid -addr: %w", err)
		}
	}

	if o.set["device-name"] {
		if _, err := cfg.SetDeviceName(o.deviceName); err != nil {
			return fmt.Errorf("invalid -device-name: %w", err)
		}
	}

	m := cfg.MQTTSettings()

	if o.any("mqtt-host", "mqtt-port") {
		host, port := m.Host, m.Port
		if o.set["mqtt-host"] {
			host = o.host
		}
		if o.set["mqtt-port"] {
			port = o.port
		}
		if _, err := cfg.SetMQTTBroker(host, port); err != nil {
			return fmt.Errorf("invalid broker override: %w", err)
		}
	}

	if o.any("mqtt-username", "mqtt-password") {
		username, password := m.Username, m.Password
		if o.set["mqtt-username"] {
			username = o.username
		}
		if o.set["mqtt-password"] {
			password = o.password
		}
		if _, err := cfg.SetMQTTCredentials(username, password); err != nil {
			return err
		}
	}

	if o.set["mqtt-tls"] {
		if _, err := cfg.SetMQTTUseTLS(o.useTLS); err != nil {
			return err
		}
	}

	if o.any("topic-solar", "topic-grid", "solar-path", "grid-path") {
		solarTopic, gridTopic := m.TopicSolar, m.TopicGrid
		solarPath, gridPath := m.SolarValuePath, m.GridValuePath
		if o.set["topic-solar"] {
			solarTopic = o.solarTopic
		}
		if o.set["topic-grid"] {
			gridTopic = o.gridTopic
		}
		if o.set["solar-path"] {
			solarPath = o.solarPath
		}
		if o.set["grid-path"] {
			gridPath = o.gridPath
		}
		if _, err := cfg.SetMQTTTopics(solarTopic, gridTopic, solarPath, gridPath); err != nil {
			return err
		}
	}

	// Read every loop by the manager
	if o.set["mqtt-interval"] {
		if err := cfg.SetMQTTInterval(o.interval); err != nil {
			return fmt.Errorf("invalid -mqtt-interval: %w", err)
		}
	}

	return nil
}
