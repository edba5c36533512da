package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/locator-agent/internal/constants"
	"github.com/benmeehan/locator-agent/internal/utils"
	"github.com/benmeehan/locator-agent/pkg/file"
	"github.com/benmeehan/locator-agent/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
mqtt:
  broker: tcp://localhost:1883
  client_id: locator-agent
identity:
  device_file: configs/device.json
providers:
  gps_device_port: /dev/ttyUSB0
  maps_api_key: AIzaExample
  modem_index: 2
  lookup_timeout: 10s
  primary_timeout: 4s
  require_permission: true
services:
  locator:
    topic: locator
    enabled: true
    qos: 1
  location_service:
    topic: location
    enabled: true
    interval: 5m
  heartbeat:
    topic: heartbeat
    enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := utils.LoadConfig(writeConfig(t, sampleConfig), file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "configs/device.json", cfg.Identity.DeviceFile)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Providers.GPSDevicePort)
	assert.Equal(t, 2, cfg.Providers.ModemIndex)
	assert.Equal(t, 5*time.Minute, cfg.Services.Location.Interval)
	assert.True(t, cfg.Services.Locator.Enabled)
	assert.False(t, cfg.Services.Heartbeat.Enabled)

	// Defaults fill what the file leaves out.
	assert.Equal(t, constants.DefaultGPSBaudRate, cfg.Providers.GPSDeviceBaudRate)
	assert.Equal(t, constants.DefaultLocatorWorkers, cfg.Services.Locator.Workers)
	assert.Equal(t, constants.DefaultHeartbeatInterval, cfg.Services.Heartbeat.Interval)

	assert.Equal(t, locator.Config{
		PrimaryTimeout:        4 * time.Second,
		OverallTimeout:        10 * time.Second,
		RequireFinePermission: true,
	}, cfg.LookupConfig())
}

func TestLoadConfig_DefaultLookupTimeout(t *testing.T) {
	cfg, err := utils.LoadConfig(writeConfig(t, "mqtt:\n  broker: tcp://localhost:1883\n"), file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, locator.DefaultOverallTimeout, cfg.LookupConfig().OverallTimeout)
	assert.Zero(t, cfg.LookupConfig().PrimaryTimeout)
}

func TestLoadConfig_RequirePermission(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"omitted", "providers:\n  gps_device_port: /dev/ttyUSB0\n", true},
		{"explicit true", "providers:\n  require_permission: true\n", true},
		{"explicit false", "providers:\n  require_permission: false\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := utils.LoadConfig(writeConfig(t, tt.content), file.NewFileService())
			require.NoError(t, err)

			require.NotNil(t, cfg.Providers.RequirePermission)
			assert.Equal(t, tt.want, *cfg.Providers.RequirePermission)
			assert.Equal(t, tt.want, cfg.LookupConfig().RequireFinePermission)
		})
	}

	// A config built in code without defaults still requires permission.
	assert.True(t, (&utils.Config{}).LookupConfig().RequireFinePermission)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := utils.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = utils.LoadConfig(writeConfig(t, "providers: [not, a, map"), file.NewFileService())
	assert.Error(t, err)
}
