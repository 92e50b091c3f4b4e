//go:build integration

package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres spins up a disposable postgres and returns a DSN for it.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vox_test"),
		postgres.WithUsername("vox_test"),
		postgres.WithPassword("vox_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return fmt.Sprintf("postgres://vox_test:vox_test@%s:%s/vox_test?sslmode=disable", host, port.Port())
}

func TestPostgresLog_AppendRead(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	log, err := NewPostgresLog(ctx, PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewPostgresLog: %v", err)
	}
	defer func() { _ = log.Close() }()

	now := time.Now().UnixMilli()
	entries := []Entry{
		{ID: 1, Type: "feed_create", Payload: json.RawMessage(`{"id":10}`), Timestamp: now},
		{ID: 2, Type: "msg_create", Payload: json.RawMessage(`{"id":11}`), Timestamp: now + 1},
		{ID: 3, Type: "msg_create", Payload: json.RawMessage(`{"id":12}`), Timestamp: now + 2},
	}
	for _, e := range entries {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("Append(%d): %v", e.ID, err)
		}
	}

	got, err := log.Read(ctx, Query{Since: now, Types: []string{"msg_create"}})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 msg_create entries, got %d", len(got))
	}
	if got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("Expected ascending IDs [2 3], got [%d %d]", got[0].ID, got[1].ID)
	}

	// Cursor paging excludes everything at or below AfterID
	got, err = log.Read(ctx, Query{Since: now, Types: []string{"msg_create"}, AfterID: 2})
	if err != nil {
		t.Fatalf("Read with cursor: %v", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("Expected only entry 3 after cursor, got %+v", got)
	}
}

func TestPostgresLog_Prune(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	log, err := NewPostgresLog(ctx, PostgresConfig{DSN: dsn, Retention: time.Millisecond})
	if err != nil {
		t.Fatalf("NewPostgresLog: %v", err)
	}
	defer func() { _ = log.Close() }()

	old := time.Now().Add(-time.Hour).UnixMilli()
	if err := log.Append(ctx, Entry{ID: 1, Type: "msg_create", Payload: json.RawMessage(`{}`), Timestamp: old}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	removed, err := log.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", removed)
	}
}
