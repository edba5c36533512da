package location

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/locator-agent/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicePermission(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "ttyGPS0")
	require.NoError(t, os.WriteFile(dev, nil, 0600))

	assert.True(t, NewDevicePermission(dev, false).FineLocationGranted())
	assert.False(t, NewDevicePermission(filepath.Join(t.TempDir(), "missing"), false).FineLocationGranted())
	assert.False(t, NewDevicePermission("", false).FineLocationGranted())

	// An inaccessible GPS node is denied even when network location is enabled.
	assert.False(t, NewDevicePermission(filepath.Join(t.TempDir(), "missing"), true).FineLocationGranted())
	// Network-only deployments have no node to guard.
	assert.True(t, NewDevicePermission("", true).FineLocationGranted())
}

func TestCapabilityProbe(t *testing.T) {
	fileClient := file.NewFileService()
	dev := filepath.Join(t.TempDir(), "ttyGPS0")
	require.NoError(t, os.WriteFile(dev, nil, 0600))

	assert.True(t, NewCapabilityProbe(dev, false, fileClient)())
	assert.True(t, NewCapabilityProbe("", true, fileClient)())
	assert.False(t, NewCapabilityProbe("", false, fileClient)())
	assert.False(t, NewCapabilityProbe(filepath.Join(t.TempDir(), "missing"), false, fileClient)())
}
