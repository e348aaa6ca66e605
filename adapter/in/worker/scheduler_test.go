package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailpilot/core/domain"
	"mailpilot/core/service/process"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []uuid.UUID
	ch   chan uuid.UUID
}

func (f *fakeRunner) Run(ctx context.Context, req process.RunRequest) (*process.RunSummary, error) {
	f.mu.Lock()
	f.runs = append(f.runs, req.UserID)
	f.mu.Unlock()
	f.ch <- req.UserID
	return &process.RunSummary{}, nil
}

type fakeUserSource struct {
	users []uuid.UUID
}

func (f *fakeUserSource) ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.users, nil
}

func (f *fakeUserSource) ListConnectedByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return nil, nil
}

func (f *fakeUserSource) GetByID(ctx context.Context, id int64) (*domain.Credential, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeUserSource) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	return nil
}

func (f *fakeUserSource) MarkDisconnected(ctx context.Context, id int64) error { return nil }

func TestSchedulerSweepsActiveUsers(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	runner := &fakeRunner{ch: make(chan uuid.UUID, 16)}
	creds := &fakeUserSource{users: []uuid.UUID{u1, u2}}

	s := NewScheduler(runner, creds, SchedulerConfig{
		Interval:   20 * time.Millisecond,
		RunTimeout: time.Second,
		MaxWorkers: 2,
	}, zerolog.Nop())
	s.Start()
	defer s.Stop()

	got := map[uuid.UUID]bool{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case id := <-runner.ch:
			got[id] = true
		case <-deadline:
			t.Fatalf("timed out waiting for sweeps, got %v", got)
		}
	}

	if !got[u1] || !got[u2] {
		t.Errorf("runs = %v, want both users", got)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	runner := &fakeRunner{ch: make(chan uuid.UUID, 1)}
	s := NewScheduler(runner, &fakeUserSource{}, SchedulerConfig{Interval: time.Hour}, zerolog.Nop())
	s.Start()
	s.Stop()
	s.Stop() // second stop must not panic
}
