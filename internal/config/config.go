package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvAddr       = "ENERGYMON_ADDR"
	EnvDBPath     = "ENERGYMON_DB_PATH"
	EnvDeviceName = "ENERGYMON_DEVICE_NAME"
	// MQTT settings
	EnvMQTTHost            = "ENERGYMON_MQTT_HOST"
	EnvMQTTPort            = "ENERGYMON_MQTT_PORT"
	EnvMQTTUsername        = "ENERGYMON_MQTT_USERNAME"
	EnvMQTTPassword        = "ENERGYMON_MQTT_PASSWORD"
	EnvMQTTUseTLS          = "ENERGYMON_MQTT_USE_TLS"
	EnvMQTTIntervalSeconds = "ENERGYMON_MQTT_INTERVAL_SECONDS"
	EnvMQTTTopicSolar      = "ENERGYMON_MQTT_TOPIC_SOLAR"
	EnvMQTTTopicGrid       = "ENERGYMON_MQTT_TOPIC_GRID"
	EnvMQTTSolarValuePath  = "ENERGYMON_MQTT_SOLAR_VALUE_PATH"
	EnvMQTTGridValuePath   = "ENERGYMON_MQTT_GRID_VALUE_PATH"
)

// Default values
const (
	DefaultAddr       = ":8080"
	DefaultDBPath     = "energymon.db"
	DefaultDeviceName = "energymon"
	// MQTT defaults
	DefaultMQTTHost            = "" // disabled
	DefaultMQTTPort            = 1883
	DefaultMQTTIntervalSeconds = 60
	DefaultValuePath           = "."
)

// MaxIntervalSeconds bounds the health publish interval (one day)
const MaxIntervalSeconds = 86400

// MQTT is a snapshot of the broker related settings
type MQTT struct {
	Host            string
	Port            int
	Username        string
	Password        string
	UseTLS          bool
	IntervalSeconds int
	TopicSolar      string
	TopicGrid       string
	SolarValuePath  string
	GridValuePath   string
}

// Config holds all application configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string
	dirty    bool // tracks if config was modified

	// Server settings
	addr       string
	dbPath     string
	deviceName string

	mqtt MQTT
}

// Load loads configuration from .env file or creates it with defaults.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	cfg.setDefaults()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// File doesn't exist - will be created with defaults
		cfg.dirty = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.dirty {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.addr = DefaultAddr
	c.dbPath = DefaultDBPath
	c.deviceName = DefaultDeviceName
	c.mqtt = MQTT{
		Host:            DefaultMQTTHost,
		Port:            DefaultMQTTPort,
		IntervalSeconds: DefaultMQTTIntervalSeconds,
		SolarValuePath:  DefaultValuePath,
		GridValuePath:   DefaultValuePath,
	}
}

// loadFromFile reads configuration from .env file.
func (c *Config) loadFromFile() error {
	file, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := godotenv.Parse(file)
	if err != nil {
		return err
	}

	c.applyValues(values)
	return nil
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) {
	if v, ok := values[EnvAddr]; ok && v != "" {
		c.addr = v
	}
	if v, ok := values[EnvDBPath]; ok && v != "" {
		c.dbPath = v
	}
	if v, ok := values[EnvDeviceName]; ok && v != "" {
		c.deviceName = v
	}

	// MQTT settings
	if v, ok := values[EnvMQTTHost]; ok {
		c.mqtt.Host = strings.TrimSpace(v)
	}
	if v, ok := values[EnvMQTTPort]; ok && v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.mqtt.Port = port
		}
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqtt.Username = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqtt.Password = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqtt.UseTLS = parseBool(v)
	}
	if v, ok := values[EnvMQTTIntervalSeconds]; ok && v != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.mqtt.IntervalSeconds = seconds
		}
	}
	if v, ok := values[EnvMQTTTopicSolar]; ok {
		c.mqtt.TopicSolar = strings.TrimSpace(v)
	}
	if v, ok := values[EnvMQTTTopicGrid]; ok {
		c.mqtt.TopicGrid = strings.TrimSpace(v)
	}
	if v, ok := values[EnvMQTTSolarValuePath]; ok {
		c.mqtt.SolarValuePath = normalizePath(v)
	}
	if v, ok := values[EnvMQTTGridValuePath]; ok {
		c.mqtt.GridValuePath = normalizePath(v)
	}
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	if err := validateAddr(c.addr); err != nil {
		return err
	}
	if c.dbPath == "" {
		return errors.New("database path cannot be empty")
	}
	if err := validatePort(c.mqtt.Port); err != nil {
		return err
	}
	return validateInterval(c.mqtt.IntervalSeconds)
}

func validateAddr(addr string) error {
	if addr == "" {
		return errors.New("server address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		if _, err := strconv.Atoi(strings.TrimPrefix(addr, ":")); err != nil {
			return fmt.Errorf("invalid server address format: %s", addr)
		}
		return nil
	}
	if port == "" {
		return errors.New("port cannot be empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s", port)
	}
	return nil
}

// validatePort accepts 0, which the broker client resolves to 1883.
func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid MQTT port: %d", port)
	}
	return nil
}

func validateInterval(seconds int) error {
	if seconds < 0 || seconds > MaxIntervalSeconds {
		return fmt.Errorf("MQTT interval must be between 0 and %d seconds", MaxIntervalSeconds)
	}
	return nil
}

// Save writes current configuration to .env file.
func (c *Config) Save() error {
	c.mu.RLock()
	values := c.toMap()
	filePath := c.filePath
	c.mu.RUnlock()

	if err := godotenv.Write(values, filePath); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// toMap converts config to key-value map for saving.
func (c *Config) toMap() map[string]string {
	return map[string]string{
		EnvAddr:       c.addr,
		EnvDBPath:     c.dbPath,
		EnvDeviceName: c.deviceName,
		// MQTT settings
		EnvMQTTHost:            c.mqtt.Host,
		EnvMQTTPort:            strconv.Itoa(c.mqtt.Port),
		EnvMQTTUsername:        c.mqtt.Username,
		EnvMQTTPassword:        c.mqtt.Password,
		EnvMQTTUseTLS:          strconv.FormatBool(c.mqtt.UseTLS),
		EnvMQTTIntervalSeconds: strconv.Itoa(c.mqtt.IntervalSeconds),
		EnvMQTTTopicSolar:      c.mqtt.TopicSolar,
		EnvMQTTTopicGrid:       c.mqtt.TopicGrid,
		EnvMQTTSolarValuePath:  c.mqtt.SolarValuePath,
		EnvMQTTGridValuePath:   c.mqtt.GridValuePath,
	}
}

// Getters (thread-safe)

// Addr returns the status server address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// DBPath returns the bbolt database path.
func (c *Config) DBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dbPath
}

// DeviceName returns the configured (unsanitized) device name.
func (c *Config) DeviceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceName
}

// FilePath returns the path to the .env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTTSettings returns a copy of the broker settings.
func (c *Config) MQTTSettings() MQTT {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqtt
}

// Setters (thread-safe, auto-save)
//
// Setters touching the broker session report changed=true when a stored
// value differs, so the caller can request a reconnect.

// SetAddr sets the status server address and saves to file.
func (c *Config) SetAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}

	c.mu.Lock()
	c.addr = addr
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// SetDeviceName sets the device name and saves to file.
func (c *Config) SetDeviceName(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("device name cannot be empty")
	}
	return c.update(func(m *MQTT) bool {
		if c.deviceName == name {
			return false
		}
		c.deviceName = name
		return true
	})
}

// SetMQTTBroker sets the broker host and port. An empty host disables MQTT.
func (c *Config) SetMQTTBroker(host string, port int) (bool, error) {
	if err := validatePort(port); err != nil {
		return false, err
	}
	host = strings.TrimSpace(host)
	return c.update(func(m *MQTT) bool {
		if m.Host == host && m.Port == port {
			return false
		}
		m.Host = host
		m.Port = port
		return true
	})
}

// SetMQTTCredentials sets the broker username and password.
func (c *Config) SetMQTTCredentials(username, password string) (bool, error) {
	return c.update(func(m *MQTT) bool {
		if m.Username == username && m.Password == password {
			return false
		}
		m.Username = username
		m.Password = password
		return true
	})
}

// SetMQTTUseTLS enables or disables TLS for the broker connection.
func (c *Config) SetMQTTUseTLS(useTLS bool) (bool, error) {
	return c.update(func(m *MQTT) bool {
		if m.UseTLS == useTLS {
			return false
		}
		m.UseTLS = useTLS
		return true
	})
}

// SetMQTTTopics sets the telemetry topics and value paths. Empty paths
// are stored as the raw path ".".
func (c *Config) SetMQTTTopics(solarTopic, gridTopic, solarPath, gridPath string) (bool, error) {
	solarTopic = strings.TrimSpace(solarTopic)
	gridTopic = strings.TrimSpace(gridTopic)
	solarPath = normalizePath(solarPath)
	gridPath = normalizePath(gridPath)

	return c.update(func(m *MQTT) bool {
		if m.TopicSolar == solarTopic && m.TopicGrid == gridTopic &&
			m.SolarValuePath == solarPath && m.GridValuePath == gridPath {
			return false
		}
		m.TopicSolar = solarTopic
		m.TopicGrid = gridTopic
		m.SolarValuePath = solarPath
		m.GridValuePath = gridPath
		return true
	})
}

// SetMQTTInterval sets the health publish interval. The manager reads it
// every loop, so no reconnect is needed.
func (c *Config) SetMQTTInterval(seconds int) error {
	if err := validateInterval(seconds); err != nil {
		return err
	}
	_, err := c.update(func(m *MQTT) bool {
		if m.IntervalSeconds == seconds {
			return false
		}
		m.IntervalSeconds = seconds
		return true
	})
	return err
}

// update applies fn under the write lock and saves when it reports a change.
func (c *Config) update(fn func(m *MQTT) bool) (bool, error) {
	c.mu.Lock()
	changed := fn(&c.mqtt)
	if changed {
		c.dirty = true
	}
	c.mu.Unlock()

	if !changed {
		return false, nil
	}
	if err := c.Save(); err != nil {
		return true, err
	}
	return true, nil
}

// Helper functions

// normalizePath maps an empty extraction path to the raw path.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultValuePath
	}
	return p
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no, on, off (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Reload reloads configuration from file. On error the current values
// are kept.
func (c *Config) Reload() error {
	next := &Config{filePath: c.FilePath()}
	next.setDefaults()

	if err := next.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}
	if err := next.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = next.addr
	c.dbPath = next.dbPath
	c.deviceName = next.deviceName
	c.mqtt = next.mqtt
	return nil
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	passwordDisplay := "[not set]"
	if c.mqtt.Password != "" {
		passwordDisplay = "[set]"
	}
	host := c.mqtt.Host
	if host == "" {
		host = "[disabled]"
	}

	return fmt.Sprintf(
		"Config{Addr: %q, DBPath: %q, Device: %q, MQTT: %s:%d, User: %q, Password: %s, TLS: %v, Interval: %ds, Solar: %q (%s), Grid: %q (%s)}",
		c.addr, c.dbPath, c.deviceName, host, c.mqtt.Port, c.mqtt.Username, passwordDisplay,
		c.mqtt.UseTLS, c.mqtt.IntervalSeconds,
		c.mqtt.TopicSolar, c.mqtt.SolarValuePath, c.mqtt.TopicGrid, c.mqtt.GridValuePath,
	)
}
