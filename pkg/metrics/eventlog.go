package metrics

import (
	"time"
)

// EventLogMetrics provides observability for the persistent event log.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type EventLogMetrics interface {
	// RecordAppend records an event append with its duration.
	RecordAppend(duration time.Duration)

	// RecordRead records a log read returning the given number of events.
	RecordRead(events int, duration time.Duration)

	// RecordPrune records a retention sweep that removed the given number
	// of expired events.
	RecordPrune(removed int)
}
