package eventlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/snowflake"
)

func testEntry(ids *snowflake.Generator, eventType string, payload string) Entry {
	return Entry{
		ID:        ids.Next(),
		Type:      eventType,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestMemoryLogReadFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := NewMemoryLog(0)
	defer log.Close()

	ids := snowflake.New()
	a := testEntry(ids, "feed_create", `{"feed_id":1}`)
	b := testEntry(ids, "role_create", `{"role_id":2}`)
	c := testEntry(ids, "feed_create", `{"feed_id":3}`)
	for _, e := range []Entry{a, b, c} {
		require.NoError(t, log.Append(ctx, e))
	}

	t.Run("type filter", func(t *testing.T) {
		got, err := log.Read(ctx, Query{Types: []string{"feed_create"}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, c.ID, got[1].ID)
	})

	t.Run("cursor excludes earlier ids", func(t *testing.T) {
		got, err := log.Read(ctx, Query{Types: []string{"feed_create", "role_create"}, AfterID: a.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := log.Read(ctx, Query{Types: []string{"feed_create", "role_create"}, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("since excludes old timestamps", func(t *testing.T) {
		got, err := log.Read(ctx, Query{Types: []string{"feed_create"}, Since: time.Now().UnixMilli() + 1000})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no requested types matches every type", func(t *testing.T) {
		got, err := log.Read(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, b.ID, got[1].ID)
		assert.Equal(t, c.ID, got[2].ID)
	})
}

func TestMemoryLogPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := NewMemoryLog(time.Hour)
	defer log.Close()

	ids := snowflake.New()
	old := testEntry(ids, "feed_create", `{}`)
	old.Timestamp = time.Now().Add(-2 * time.Hour).UnixMilli()
	fresh := testEntry(ids, "feed_create", `{}`)
	require.NoError(t, log.Append(ctx, old))
	require.NoError(t, log.Append(ctx, fresh))

	removed, err := log.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := log.Read(ctx, Query{Types: []string{"feed_create"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestMemoryLogClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := NewMemoryLog(0)
	require.NoError(t, log.Close())

	assert.ErrorIs(t, log.Append(ctx, Entry{}), ErrClosed)
	_, err := log.Read(ctx, Query{Types: []string{"feed_create"}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	log, err := NewBadgerLog(BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer log.Close()

	ids := snowflake.New()
	var want []Entry
	for i := 0; i < 5; i++ {
		e := testEntry(ids, "feed_create", `{"n":1}`)
		require.NoError(t, log.Append(ctx, e))
		want = append(want, e)
	}

	got, err := log.Read(ctx, Query{Types: []string{"feed_create"}})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, e := range got {
		assert.Equal(t, want[i].ID, e.ID, "results must come back in id order")
		assert.JSONEq(t, string(want[i].Payload), string(e.Payload))
	}

	t.Run("cursor seek", func(t *testing.T) {
		got, err := log.Read(ctx, Query{Types: []string{"feed_create"}, AfterID: want[2].ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, want[3].ID, got[0].ID)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory ok", Config{Backend: BackendMemory}, false},
		{"badger needs path", Config{Backend: BackendBadger}, true},
		{"badger ok", Config{Backend: BackendBadger, Badger: BadgerConfig{Path: "/tmp/ev"}}, false},
		{"postgres needs dsn", Config{Backend: BackendPostgres}, true},
		{"unknown backend", Config{Backend: "etcd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
