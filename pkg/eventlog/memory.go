package eventlog

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process Log. It backs tests and the default dev
// configuration; contents are lost on restart, so resumable clients
// fall back to a full sync.
type MemoryLog struct {
	mu        sync.RWMutex
	entries   []Entry
	retention time.Duration
	closed    bool
}

// NewMemoryLog returns an empty in-memory log. A retention of 0 means
// DefaultRetention.
func NewMemoryLog(retention time.Duration) *MemoryLog {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryLog{retention: retention}
}

// Append implements Log. Entries arrive in snowflake order from the
// dispatcher, so the slice stays sorted by ID.
func (l *MemoryLog) Append(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Read implements Log.
func (l *MemoryLog) Read(_ context.Context, q Query) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	var out []Entry
	for _, e := range l.entries {
		if !q.matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Prune implements Log.
func (l *MemoryLog) Prune(_ context.Context) (int64, error) {
	cutoff := time.Now().Add(-l.retention).UnixMilli()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	// Entries are in timestamp order for all practical purposes, but a
	// clock step could break that, so filter rather than binary-search.
	kept := l.entries[:0]
	var removed int64
	for _, e := range l.entries {
		if e.Timestamp < cutoff {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}

// Close implements Log.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

var _ Log = (*MemoryLog)(nil)
