package monitor

// Monitor configuration constants
const (
	// Per-subscriber event buffer; slow subscribers lose events.
	SubscriberBuffer = 32

	// Window used for the stats reported by Status (seconds)
	StatusWindowSeconds = 60
)

// Event types
const (
	EventReading = "reading"
	EventAlert   = "alert"
	EventBatch   = "batch"
)
