package models

import (
	"time"
)

// Location represents a geographical location with associated metadata
type Location struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
}

// LocatorRequest is a call received on the locator topic.
type LocatorRequest struct {
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
}

// LocatorResponse answers a LocatorRequest. Exactly one of Result and Error is set.
type LocatorResponse struct {
	RequestID string        `json:"request_id"`
	Method    string        `json:"method"`
	Result    any           `json:"result,omitempty"`
	Error     *LocatorError `json:"error,omitempty"`
}

// LocatorError is the structured failure returned to the application layer.
type LocatorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LocationResult is the success payload of getLocation.
type LocationResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"` // Unix epoch milliseconds
}
