package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill pushes n frames with seqs 1..n through the session's buffer.
func fill(s *SessionState, n int) {
	for i := 1; i <= n; i++ {
		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.replay = append(s.replay, SequencedFrame{Seq: seq, Frame: []byte(fmt.Sprintf(`{"seq":%d}`, seq))})
		if len(s.replay) > s.maxReplay {
			s.replay = s.replay[len(s.replay)-s.maxReplay:]
		}
		s.mu.Unlock()
	}
}

func TestSessionReplayContiguity(t *testing.T) {
	t.Parallel()

	s := NewSessionState("s", 1, 1000)
	fill(s, 10)

	frames, ok := s.After(4)
	require.True(t, ok)
	require.Len(t, frames, 6)
	for i, f := range frames {
		assert.Equal(t, int64(5+i), f.Seq, "replay must be strictly increasing from lastSeq+1")
	}
	assert.Equal(t, s.Seq(), frames[len(frames)-1].Seq, "buffer suffix must end at the session seq")
}

func TestSessionReplayEviction(t *testing.T) {
	t.Parallel()

	s := NewSessionState("s", 1, 5)
	fill(s, 20)

	// Buffer holds seqs 16..20 only.
	t.Run("within buffer", func(t *testing.T) {
		frames, ok := s.After(16)
		require.True(t, ok)
		assert.Len(t, frames, 4)
	})

	t.Run("exactly at oldest boundary", func(t *testing.T) {
		frames, ok := s.After(15)
		require.True(t, ok)
		assert.Len(t, frames, 5)
	})

	t.Run("below oldest buffered seq", func(t *testing.T) {
		_, ok := s.After(14)
		assert.False(t, ok, "resume must fail with 4010 when the gap cannot be covered")
	})
}

func TestSessionReplayEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("empty buffer caught up", func(t *testing.T) {
		s := NewSessionState("s", 1, 10)
		frames, ok := s.After(0)
		require.True(t, ok)
		assert.Empty(t, frames)
	})

	t.Run("claiming future frames fails", func(t *testing.T) {
		s := NewSessionState("s", 1, 10)
		fill(s, 3)
		_, ok := s.After(7)
		assert.False(t, ok)
	})

	t.Run("fully caught up", func(t *testing.T) {
		s := NewSessionState("s", 1, 10)
		fill(s, 3)
		frames, ok := s.After(3)
		require.True(t, ok)
		assert.Empty(t, frames)
	})
}
