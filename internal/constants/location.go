package constants

import "time"

// Methods accepted on the locator request topic.
const (
	MethodGetLocation = "getLocation"
	MethodIsAvailable = "isAvailable"
)

// Error codes returned to the application layer.
const (
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeProviderError       = "HMS_ERROR"
	ErrCodeLocationUnavailable = "LOCATION_UNAVAILABLE"
	ErrCodeNotAvailable        = "HMS_NOT_AVAILABLE"
	ErrCodeNotImplemented      = "NOT_IMPLEMENTED"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeDuplicateRequest    = "DUPLICATE_REQUEST"
)

const (
	// DefaultLocatorWorkers is the size of the reply worker pool.
	DefaultLocatorWorkers = 4

	// DefaultGPSBaudRate is the usual rate of NMEA receivers.
	DefaultGPSBaudRate = 9600

	// DefaultLocationInterval is the period of the location publisher.
	DefaultLocationInterval = 60 * time.Second

	// DefaultHeartbeatInterval is the period of the heartbeat publisher.
	DefaultHeartbeatInterval = 30 * time.Second
)
