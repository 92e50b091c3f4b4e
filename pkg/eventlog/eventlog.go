// Package eventlog implements the durable append-only event log backing
// gateway replay catch-up and the incremental sync endpoint.
//
// Rows are (snowflake id, event type, JSON payload, unix-ms timestamp) and
// are retained for a bounded window (7 days by default). Three backends
// are provided: an in-memory log for tests, an embedded Badger log for
// single-node deployments, and a PostgreSQL log for deployments that
// already run postgres for the control-plane store.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultRetention is how long appended events remain readable.
const DefaultRetention = 7 * 24 * time.Hour

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("eventlog: closed")

// Entry is one persisted event.
type Entry struct {
	// ID is a snowflake assigned by the dispatcher at append time.
	// IDs are monotonically non-decreasing within a process.
	ID int64 `json:"id"`

	// Type is the gateway event type, e.g. "feed_create".
	Type string `json:"type"`

	// Payload is the event's d object as it went out on the wire.
	Payload json.RawMessage `json:"d"`

	// Timestamp is the append time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Query selects a page of the log tail.
type Query struct {
	// Since excludes entries with Timestamp below this unix-ms value.
	Since int64

	// Types restricts results to the listed event types. Empty matches
	// every type.
	Types []string

	// AfterID excludes entries with ID <= AfterID. Used as the paging
	// cursor.
	AfterID int64

	// Limit caps the number of returned entries. Zero means no cap.
	Limit int
}

// Log is the storage interface for the event log.
type Log interface {
	// Append persists one entry. The caller assigns ID and Timestamp.
	Append(ctx context.Context, entry Entry) error

	// Read returns matching entries ordered by ID ascending.
	Read(ctx context.Context, q Query) ([]Entry, error)

	// Prune removes entries older than the retention window and
	// returns how many were removed. Backends with native TTL may
	// return 0.
	Prune(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}

// matches reports whether the entry satisfies the query filters.
func (q Query) matches(e Entry) bool {
	if e.Timestamp < q.Since || e.ID <= q.AfterID {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}
