package writer

import "time"

// WriterConfig controls batching behavior.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
	}
}

// feedRow represents a row to be inserted into the feed_messages table.
type feedRow struct {
	InstanceID string
	Channel    string
	ReceivedAt int64 // Microseconds
	Payload    []byte
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}
