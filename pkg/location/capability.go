package location

import (
	"github.com/benmeehan/locator-agent/pkg/file"
	"golang.org/x/sys/unix"
)

// DevicePermission grants fine location when the agent may read and write the GPS device node.
// A network-only deployment has no node to guard and is granted when network geolocation is enabled.
type DevicePermission struct {
	path           string
	networkEnabled bool
}

// NewDevicePermission creates a permission check for the given device node.
func NewDevicePermission(path string, networkEnabled bool) *DevicePermission {
	return &DevicePermission{path: path, networkEnabled: networkEnabled}
}

// FineLocationGranted reports whether the current process can access the GPS device.
func (d *DevicePermission) FineLocationGranted() bool {
	if d.path == "" {
		return d.networkEnabled
	}
	return unix.Access(d.path, unix.R_OK|unix.W_OK) == nil
}

// NewCapabilityProbe returns a probe that reports whether any location provider can work on
// this device: either the GPS device node is present or network geolocation is configured.
func NewCapabilityProbe(gpsPort string, networkEnabled bool, fileClient file.FileOperations) func() bool {
	return func() bool {
		if networkEnabled {
			return true
		}
		if gpsPort == "" {
			return false
		}
		exists, err := fileClient.IsFileExists(gpsPort)
		return err == nil && exists
	}
}
