// Package snowflake generates roughly-sortable 64-bit identifiers.
//
// An ID is a 42-bit unix-millisecond timestamp shifted left 22 bits, OR'd
// with a 22-bit per-process sequence. IDs are monotonically non-decreasing
// within a process; concurrent generators on separate processes interleave
// freely but remain sortable to millisecond precision.
package snowflake

import (
	"sync"
	"time"
)

const (
	// timestampShift is the number of bits the millisecond timestamp is
	// shifted left.
	timestampShift = 22

	// seqMask masks the per-millisecond sequence to 22 bits.
	seqMask = 0x3FFFFF
)

// Generator mints snowflake IDs. The zero value is ready to use, but
// callers normally share a single instance created with New.
type Generator struct {
	mu     sync.Mutex
	lastTS int64
	seq    int64
}

// New returns a Generator ready for concurrent use.
func New() *Generator {
	return &Generator{}
}

// Next returns the next ID. Safe for concurrent use.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts < g.lastTS {
		// Clock went backwards; keep issuing against the last
		// observed millisecond so IDs never regress.
		ts = g.lastTS
	}

	if ts == g.lastTS {
		g.seq++
		if g.seq > seqMask {
			// Sequence exhausted within this millisecond; borrow
			// from the next one rather than blocking.
			g.lastTS++
			ts = g.lastTS
			g.seq = 0
		}
	} else {
		g.lastTS = ts
		g.seq = 0
	}

	return (ts << timestampShift) | (g.seq & seqMask)
}

// Timestamp extracts the creation time embedded in an ID.
func Timestamp(id int64) time.Time {
	return time.UnixMilli(id >> timestampShift)
}

// FromTime returns the smallest ID that could have been minted at t.
// Useful as a range boundary when scanning by creation time.
func FromTime(t time.Time) int64 {
	return t.UnixMilli() << timestampShift
}
