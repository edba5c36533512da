package location

// Fix is a single reported position. It is passed through to callers unchanged.
type Fix struct {
	Latitude        float64 // Decimal degrees
	Longitude       float64 // Decimal degrees
	AccuracyMeters  float64 // Estimated horizontal accuracy radius
	TimestampMillis int64   // Unix epoch milliseconds of the fix
}

// Priority selects which kind of provider serves a request.
type Priority int

const (
	// PriorityHighAccuracy asks for a GPS-class fix.
	PriorityHighAccuracy Priority = iota
	// PriorityLowPower asks for a network based fix.
	PriorityLowPower
)

func (p Priority) String() string {
	switch p {
	case PriorityHighAccuracy:
		return "high_accuracy"
	case PriorityLowPower:
		return "low_power"
	default:
		return "unknown"
	}
}
