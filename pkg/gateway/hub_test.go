package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn(userID int64, ip string) *Connection {
	c := NewConnection(Deps{}, Config{}, nil, ip, false)
	c.identified = true
	c.userID = userID
	c.sessionID = newSessionID()
	return c
}

func TestHubAdmissionCaps(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{MaxTotalConnections: 100}, nil)

	t.Run("per ip cap", func(t *testing.T) {
		var admitted []*Connection
		for i := 0; i < 10; i++ {
			c := testConn(int64(100+i), "10.0.0.1")
			require.NoError(t, hub.Register(c))
			admitted = append(admitted, c)
		}
		err := hub.Register(testConn(999, "10.0.0.1"))
		assert.ErrorIs(t, err, ErrTooManyPerIP)

		// A different address is unaffected.
		other := testConn(999, "10.0.0.2")
		assert.NoError(t, hub.Register(other))
		hub.Unregister(other)
		for _, c := range admitted {
			hub.Unregister(c)
		}
	})

	t.Run("per user cap", func(t *testing.T) {
		var admitted []*Connection
		for i := 0; i < 5; i++ {
			c := testConn(7, fmt.Sprintf("10.1.0.%d", i))
			require.NoError(t, hub.Register(c))
			admitted = append(admitted, c)
		}
		err := hub.Register(testConn(7, "10.1.0.200"))
		assert.ErrorIs(t, err, ErrTooManyPerUser)
		for _, c := range admitted {
			hub.Unregister(c)
		}
	})

	t.Run("global cap", func(t *testing.T) {
		small := NewHub(Config{MaxTotalConnections: 2}, nil)
		require.NoError(t, small.Register(testConn(1, "10.2.0.1")))
		require.NoError(t, small.Register(testConn(2, "10.2.0.2")))
		err := small.Register(testConn(3, "10.2.0.3"))
		assert.ErrorIs(t, err, ErrServerFull)
	})
}

func TestHubPresenceTruth(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, nil)
	c1 := testConn(42, "10.0.0.1")
	c2 := testConn(42, "10.0.0.2")

	// No connection: offline regardless of records.
	assert.Equal(t, StatusOffline, hub.Presence(42).Status)

	require.NoError(t, hub.Register(c1))
	require.NoError(t, hub.Register(c2))
	hub.SetPresence(42, PresenceRecord{Status: StatusDND})
	assert.Equal(t, StatusDND, hub.Presence(42).Status)

	// First disconnect keeps presence.
	last := hub.Unregister(c1)
	assert.False(t, last)
	assert.Equal(t, StatusDND, hub.Presence(42).Status)

	// Last disconnect clears it atomically.
	last = hub.Unregister(c2)
	assert.True(t, last)
	assert.Equal(t, StatusOffline, hub.Presence(42).Status)
}

func TestHubInvisibleBroadcastsAsOffline(t *testing.T) {
	t.Parallel()

	p := PresenceRecord{Status: StatusInvisible, CustomStatus: "hiding"}
	assert.Equal(t, StatusOffline, p.BroadcastStatus())
	assert.Equal(t, StatusInvisible, p.Status)
}

func TestHubSessionTTL(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{SessionTTL: 50 * time.Millisecond}, nil)
	s := NewSessionState("abc", 1, 10)
	hub.SaveSession(s)

	require.NotNil(t, hub.GetSession("abc"))

	time.Sleep(80 * time.Millisecond)
	assert.Nil(t, hub.GetSession("abc"), "expired session must be evicted on access")
	assert.Nil(t, hub.GetSession("abc"))
}

func TestHubCleanupSessions(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{SessionTTL: 50 * time.Millisecond}, nil)
	hub.SaveSession(NewSessionState("a", 1, 10))
	hub.SaveSession(NewSessionState("b", 2, 10))

	time.Sleep(80 * time.Millisecond)
	hub.SaveSession(NewSessionState("c", 3, 10))

	assert.Equal(t, 2, hub.CleanupSessions())
	assert.NotNil(t, hub.GetSession("c"))
}

func TestHubCleanupOrphanedPresence(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, nil)
	hub.SetPresence(5, PresenceRecord{Status: StatusOnline})
	hub.SetPresence(6, PresenceRecord{Status: StatusIdle})

	c := testConn(6, "10.0.0.1")
	require.NoError(t, hub.Register(c))

	assert.Equal(t, 1, hub.CleanupOrphanedPresence())
	assert.Equal(t, StatusIdle, hub.Presence(6).Status)
}

func TestHubAuthFailures(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, nil)
	assert.Equal(t, 0, hub.AuthFailures("10.0.0.9"))
	for i := 0; i < 3; i++ {
		hub.RecordAuthFailure("10.0.0.9")
	}
	assert.Equal(t, 3, hub.AuthFailures("10.0.0.9"))
	assert.Equal(t, 0, hub.AuthFailures("10.0.0.10"))
}
