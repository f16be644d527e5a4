package mqtt

import (
	"net"
	"strconv"
	"strings"
)

const (
	// DefaultPort is used when no broker port is configured
	DefaultPort = 1883

	// DefaultDeviceName is used when the device name sanitizes to nothing
	DefaultDeviceName = "energymon"

	// PayloadOnline and PayloadOffline are the availability values
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Settings is the broker configuration read by the Manager on every loop
type Settings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	UseTLS     bool
	DeviceName string

	// IntervalSeconds enables periodic health publication when > 0
	IntervalSeconds int

	SolarTopic string
	GridTopic  string
	SolarPath  string
	GridPath   string
}

// Enabled reports whether a broker host is configured
func (s Settings) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

// ResolvedPort returns the configured port or DefaultPort
func (s Settings) ResolvedPort() int {
	if s.Port <= 0 {
		return DefaultPort
	}
	return s.Port
}

// BrokerURL returns the paho broker address
func (s Settings) BrokerURL() string {
	scheme := "tcp"
	if s.UseTLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(strings.TrimSpace(s.Host), strconv.Itoa(s.ResolvedPort()))
}

// Topics are the device's own publication topics
type Topics struct {
	Device       string // sanitized device name
	Base         string
	Availability string
	Health       string
}

// NewTopics derives the topic set for a device name
func NewTopics(deviceName string) Topics {
	device := SanitizeName(deviceName)
	base := "devices/" + device
	return Topics{
		Device:       device,
		Base:         base,
		Availability: base + "/availability",
		Health:       base + "/health/state",
	}
}

// SanitizeName creates a safe ID for MQTT topics and client IDs:
// lowercase, space, '/' and '.' become '_', and anything outside
// [a-z0-9_-] is dropped.
func SanitizeName(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+('a'-'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
			b = append(b, c)
		case c == ' ' || c == '/' || c == '.':
			b = append(b, '_')
		}
	}
	if len(b) == 0 {
		return DefaultDeviceName
	}
	return string(b)
}
