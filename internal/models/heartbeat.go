package models

import "time"

// Heartbeat represents the structure for a device heartbeat event.
type Heartbeat struct {
	DeviceID          string    `json:"device_id"`
	Timestamp         time.Time `json:"timestamp"`
	Status            string    `json:"status"`
	LocationAvailable bool      `json:"location_available"`
	UptimeSeconds     uint64    `json:"uptime_seconds,omitempty"` // Host uptime, omitted when unknown
}
