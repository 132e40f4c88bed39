package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCleanupStore struct {
	now, usedBefore time.Time
	sessionsCalled  bool
	tokenErr        error
}

func (f *fakeCleanupStore) DeleteStalePasswordResetTokens(_ context.Context, now, usedBefore time.Time) (int64, error) {
	f.now, f.usedBefore = now, usedBefore
	return 3, f.tokenErr
}

func (f *fakeCleanupStore) DeleteStaleRefreshSessions(_ context.Context, now time.Time) (int64, error) {
	f.sessionsCalled = true
	return 2, nil
}

func TestCleanup(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeCleanupStore{}
	tokens, sessions, err := Cleanup(context.Background(), store, now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if tokens != 3 || sessions != 2 {
		t.Fatalf("unexpected counts %d %d", tokens, sessions)
	}
	if !store.usedBefore.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected retention cutoff %v", store.usedBefore)
	}
}

func TestCleanupStopsOnError(t *testing.T) {
	store := &fakeCleanupStore{tokenErr: errors.New("db down")}
	if _, _, err := Cleanup(context.Background(), store, time.Now()); err == nil {
		t.Fatalf("expected error")
	}
	if store.sessionsCalled {
		t.Fatalf("sessions should not be touched after a failure")
	}
}
