package utils

import (
	"time"

	"github.com/benmeehan/locator-agent/internal/constants"
	"github.com/benmeehan/locator-agent/pkg/file"
	"github.com/benmeehan/locator-agent/pkg/locator"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Providers struct {
		GPSDevicePort     string        `yaml:"gps_device_port"` // UNIX port where the GPS sensor is mounted
		GPSDeviceBaudRate int           `yaml:"gps_baud_rate"`   // The baud rate for the GPS sensor
		MapsAPIKey        string        `yaml:"maps_api_key"`    // Google Maps API key, empty disables network location
		ModemIndex        int           `yaml:"modem_index"`     // ModemManager index used for cell towers
		LookupTimeout     time.Duration `yaml:"lookup_timeout"`  // Overall budget of one lookup
		PrimaryTimeout    time.Duration `yaml:"primary_timeout"` // Silence before falling back to network location, 0 disables
		RequirePermission *bool         `yaml:"require_permission"` // Defaults to true when omitted
	} `yaml:"providers"`

	Services struct {
		Locator struct {
			Topic   string `yaml:"topic"`   // MQTT topic prefix for locator requests
			Enabled bool   `yaml:"enabled"` // Enable/disable the locator bridge
			QOS     int    `yaml:"qos"`     // MQTT QoS level for requests and replies
			Workers int    `yaml:"workers"` // Reply publishing workers
		} `yaml:"locator"`

		Location struct {
			Topic    string        `yaml:"topic"`    // MQTT topic for location service
			Enabled  bool          `yaml:"enabled"`  // Enable/disable location service
			Interval time.Duration `yaml:"interval"` // Interval between geo-location messages
			QOS      int           `yaml:"qos"`      // MQTT QoS level for location messages
		} `yaml:"location_service"`

		Heartbeat struct {
			Topic    string        `yaml:"topic"`    // MQTT topic for heartbeat service
			Enabled  bool          `yaml:"enabled"`  // Enable/disable heartbeat service
			Interval time.Duration `yaml:"interval"` // Interval between heartbeats
			QOS      int           `yaml:"qos"`      // MQTT QoS level for heartbeat messages
		} `yaml:"heartbeat"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero values with the agent defaults.
func (c *Config) ApplyDefaults() {
	if c.Providers.GPSDeviceBaudRate == 0 {
		c.Providers.GPSDeviceBaudRate = constants.DefaultGPSBaudRate
	}
	if c.Providers.RequirePermission == nil {
		requirePermission := locator.DefaultConfig().RequireFinePermission
		c.Providers.RequirePermission = &requirePermission
	}
	if c.Providers.LookupTimeout <= 0 {
		c.Providers.LookupTimeout = locator.DefaultOverallTimeout
	}
	if c.Services.Locator.Workers <= 0 {
		c.Services.Locator.Workers = constants.DefaultLocatorWorkers
	}
	if c.Services.Location.Interval <= 0 {
		c.Services.Location.Interval = constants.DefaultLocationInterval
	}
	if c.Services.Heartbeat.Interval <= 0 {
		c.Services.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
}

// LookupConfig returns the per-lookup settings derived from the provider section.
func (c *Config) LookupConfig() locator.Config {
	cfg := locator.DefaultConfig()
	cfg.PrimaryTimeout = c.Providers.PrimaryTimeout
	if c.Providers.LookupTimeout > 0 {
		cfg.OverallTimeout = c.Providers.LookupTimeout
	}
	if c.Providers.RequirePermission != nil {
		cfg.RequireFinePermission = *c.Providers.RequirePermission
	}
	return cfg
}
