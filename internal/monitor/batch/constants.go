package batch

import "time"

// Frame batcher defaults
const (
	DefaultMaxSize    = 8
	DefaultFlushDelay = 500 * time.Millisecond
)
