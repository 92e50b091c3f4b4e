package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/snowflake"
)

func newDispatcher(t *testing.T) (*Dispatcher, *eventlog.MemoryLog) {
	t.Helper()
	log := eventlog.NewMemoryLog(eventlog.DefaultRetention)
	hub := gateway.NewHub(gateway.Config{}, nil)
	return New(hub, log, snowflake.New(), nil), log
}

func TestDispatchAppendsSyncableEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, log := newDispatcher(t)

	err := d.Dispatch(ctx, events.FeedCreate(events.FeedCreateData{FeedID: 10, Name: "general"}))
	require.NoError(t, err)

	entries, err := log.Read(ctx, eventlog.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, events.TypeFeedCreate, entries[0].Type)
	assert.Contains(t, string(entries[0].Payload), `"general"`)
	assert.NotZero(t, entries[0].ID)
	assert.NotZero(t, entries[0].Timestamp)
}

func TestDispatchSkipsEphemeralEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, log := newDispatcher(t)

	// Typing and presence are ephemeral: fan-out only, never logged.
	require.NoError(t, d.Dispatch(ctx, events.TypingStart(1, events.FeedTarget(10))))
	require.NoError(t, d.Dispatch(ctx, events.PresenceUpdate(1, "online", nil)))

	entries, err := log.Read(ctx, eventlog.Query{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatchIDsAreMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, log := newDispatcher(t)

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Dispatch(ctx, events.FeedCreate(events.FeedCreateData{FeedID: int64(i), Name: "f"})))
	}

	entries, err := log.Read(ctx, eventlog.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 50)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].ID, entries[i-1].ID)
	}
}

func TestDispatchSurvivesLogFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	log := eventlog.NewMemoryLog(eventlog.DefaultRetention)
	require.NoError(t, log.Close())

	hub := gateway.NewHub(gateway.Config{}, nil)
	d := New(hub, log, snowflake.New(), nil)

	// A dead log must not fail the dispatch; connected clients still
	// get the event.
	err := d.Dispatch(ctx, events.FeedCreate(events.FeedCreateData{FeedID: 1, Name: "f"}))
	assert.NoError(t, err)
}

func TestDispatchToNilMeansNobody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, log := newDispatcher(t)

	// Even with no recipients the event is logged for catch-up.
	require.NoError(t, d.DispatchTo(ctx, events.FeedCreate(events.FeedCreateData{FeedID: 2, Name: "x"}), nil))

	entries, err := log.Read(ctx, eventlog.Query{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
