package gateway

import (
	"sync"
	"time"
)

// SequencedFrame is one already-serialized server frame held for replay.
// The bytes include the seq the frame went out with, so resume replays
// them verbatim.
type SequencedFrame struct {
	Seq   int64
	Frame []byte
}

// SessionState is the hub-owned record that survives a disconnect. The
// owning connection pushes every sequenced frame here as it sends, so a
// later resume can replay what the old socket may not have delivered.
//
// The session never references its connection; on resume a fresh
// connection adopts the record.
type SessionState struct {
	ID     string
	UserID int64

	mu        sync.Mutex
	seq       int64
	replay    []SequencedFrame
	maxReplay int
	createdAt time.Time
}

// NewSessionState returns an empty session for a just-identified
// connection.
func NewSessionState(id string, userID int64, maxReplay int) *SessionState {
	if maxReplay <= 0 {
		maxReplay = 1000
	}
	return &SessionState{
		ID:        id,
		UserID:    userID,
		maxReplay: maxReplay,
		createdAt: time.Now(),
	}
}

// Seq returns the last assigned sequence number.
func (s *SessionState) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Push records a sent frame, evicting the oldest entry once the buffer
// is full. Frames must be pushed in seq order; the buffer is always a
// contiguous suffix ending at the current seq.
func (s *SessionState) Push(seq int64, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = append(s.replay, SequencedFrame{Seq: seq, Frame: frame})
	if len(s.replay) > s.maxReplay {
		s.replay = s.replay[len(s.replay)-s.maxReplay:]
	}
}

// After returns the buffered frames with seq > lastSeq, in order. The
// second return is false when the buffer no longer reaches back to
// lastSeq+1, which a resume must answer with close 4010.
func (s *SessionState) After(lastSeq int64) ([]SequencedFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lastSeq > s.seq {
		// The client claims frames we never sent.
		return nil, false
	}
	if len(s.replay) == 0 {
		return nil, lastSeq == s.seq
	}
	oldest := s.replay[0].Seq
	if lastSeq+1 < oldest {
		return nil, false
	}
	var out []SequencedFrame
	for _, f := range s.replay {
		if f.Seq > lastSeq {
			out = append(out, f)
		}
	}
	return out, true
}

// Touch restarts the preservation TTL. Called when the owning
// connection disconnects.
func (s *SessionState) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdAt = time.Now()
}

// ExpiredAt reports whether the session has outlived the TTL at the
// given instant.
func (s *SessionState) ExpiredAt(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.createdAt) > ttl
}
