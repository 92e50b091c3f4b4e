package interactions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndConsume(t *testing.T) {
	t.Parallel()

	s := NewStore(0)
	in := s.Create("command", "roll", []byte(`{"sides":6}`), 1, nil, nil, 99)
	require.NotEmpty(t, in.ID)
	assert.Len(t, in.ID, 26, "ids are ULIDs")

	got := s.Get(in.ID)
	require.NotNil(t, got)
	assert.Equal(t, "roll", got.Command)

	// Consume removes; a second consume finds nothing.
	assert.NotNil(t, s.Consume(in.ID))
	assert.Nil(t, s.Consume(in.ID))
	assert.Nil(t, s.Get(in.ID))
}

func TestLazyExpiry(t *testing.T) {
	t.Parallel()

	s := NewStore(10 * time.Millisecond)
	in := s.Create("command", "ping", nil, 1, nil, nil, 99)

	time.Sleep(30 * time.Millisecond)

	assert.Nil(t, s.Get(in.ID), "expired entries are invisible")
	assert.Zero(t, s.Size(), "expired entries are evicted on access")
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := NewStore(time.Minute)
	s.Create("command", "a", nil, 1, nil, nil, 2)
	s.Create("command", "b", nil, 1, nil, nil, 2)
	require.Equal(t, 2, s.Size())

	s.Reset()
	assert.Zero(t, s.Size())
}

func TestIDsAreSortable(t *testing.T) {
	t.Parallel()

	s := NewStore(time.Minute)
	a := s.Create("command", "a", nil, 1, nil, nil, 2)
	time.Sleep(2 * time.Millisecond)
	b := s.Create("command", "b", nil, 1, nil, nil, 2)
	assert.Less(t, a.ID, b.ID)
}
