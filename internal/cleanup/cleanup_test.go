package cleanup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cmorg789/vox/pkg/interactions"
)

type fakeStore struct {
	sessions   int64
	sessionErr error
	challenges int64
	nonces     int64
	nonceErr   error
}

func (f *fakeStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return f.sessions, f.sessionErr
}

func (f *fakeStore) DeleteExpiredChallenges(ctx context.Context) (int64, error) {
	return f.challenges, nil
}

func (f *fakeStore) DeleteExpiredNonces(ctx context.Context) (int64, error) {
	return f.nonces, f.nonceErr
}

func TestPrune_NoDeps(t *testing.T) {
	j := New(Deps{}, Config{})
	if err := j.Prune(context.Background()); err != nil {
		t.Fatalf("Prune with no deps should be a no-op, got: %v", err)
	}
}

func TestPrune_AggregatesErrors(t *testing.T) {
	st := &fakeStore{
		sessionErr: errors.New("sessions table locked"),
		nonceErr:   errors.New("nonces table locked"),
	}
	j := New(Deps{Store: st}, Config{})

	err := j.Prune(context.Background())
	if err == nil {
		t.Fatal("Expected aggregate error from failing store")
	}
	// Both failures must be reported, not just the first
	if !strings.Contains(err.Error(), "sessions table locked") {
		t.Errorf("Expected sessions error in aggregate, got: %v", err)
	}
	if !strings.Contains(err.Error(), "nonces table locked") {
		t.Errorf("Expected nonces error in aggregate, got: %v", err)
	}
}

func TestPrune_SuccessIsNil(t *testing.T) {
	st := &fakeStore{sessions: 3, challenges: 1, nonces: 2}
	j := New(Deps{Store: st}, Config{})

	if err := j.Prune(context.Background()); err != nil {
		t.Fatalf("Expected nil error on successful prune, got: %v", err)
	}
}

func TestSweep_Interactions(t *testing.T) {
	store := interactions.NewStore(time.Millisecond)
	store.Create("command", "ping", nil, 1, nil, nil, 2)
	time.Sleep(5 * time.Millisecond)

	j := New(Deps{Interactions: store}, Config{})
	j.Sweep()

	if store.Size() != 0 {
		t.Errorf("Expected expired interaction to be swept, %d remain", store.Size())
	}
}

func TestStartStop(t *testing.T) {
	j := New(Deps{}, Config{SweepInterval: 10 * time.Millisecond, PruneInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	j.Stop()

	// Stop is idempotent
	j.Stop()
}
