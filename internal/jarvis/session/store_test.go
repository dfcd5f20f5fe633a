package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/session"
)

func TestBegin_RejectsSecondSession(t *testing.T) {
	store := session.NewStore()

	if _, err := store.Begin("uid-1", 7, "Alice", "collecting", nil); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := store.Begin("uid-1", 7, "Alice", "collecting", nil); !errors.Is(err, session.ErrActive) {
		t.Fatalf("second begin: got %v, want ErrActive", err)
	}
	if _, err := store.Begin("uid-2", 8, "Bob", "collecting", nil); err != nil {
		t.Fatalf("different owner must be independent: %v", err)
	}
}

func TestEndIfMatch_IdentityChecked(t *testing.T) {
	store := session.NewStore()
	first, _ := store.Begin("uid-1", 7, "Alice", "collecting", nil)

	// Complete the session and start a fresh one: a stale id must not
	// remove the new session.
	store.End("uid-1")
	second, _ := store.Begin("uid-1", 7, "Alice", "collecting", nil)

	if store.EndIfMatch("uid-1", first.ID) {
		t.Fatal("stale id removed the new session")
	}
	if !store.Has("uid-1") {
		t.Fatal("new session should survive the stale removal attempt")
	}
	if !store.EndIfMatch("uid-1", second.ID) {
		t.Fatal("matching id should remove the session")
	}
}

func TestSetState_IdentityChecked(t *testing.T) {
	store := session.NewStore()
	first, _ := store.Begin("uid-1", 7, "Alice", "collecting", nil)

	store.End("uid-1")
	second, _ := store.Begin("uid-1", 7, "Alice", "collecting", nil)

	if store.SetState("uid-1", first.ID, "confirming") {
		t.Fatal("stale id transitioned the new session")
	}
	if !store.SetState("uid-1", second.ID, "confirming") {
		t.Fatal("matching id should transition")
	}
	s, _ := store.Get("uid-1")
	if s.State != "confirming" {
		t.Fatalf("state: got %q, want confirming", s.State)
	}
}

func TestExpired_ReturnsCopies(t *testing.T) {
	store := session.NewStore()
	s, _ := store.Begin("uid-1", 7, "Alice", "collecting", nil)

	expired := store.Expired(s.CreatedAt.Add(time.Hour), time.Minute)
	if len(expired) != 1 {
		t.Fatalf("expired: got %d entries, want 1", len(expired))
	}

	// A transition after the snapshot must not show through.
	store.SetState("uid-1", s.ID, "confirming")
	if expired[0].State != "collecting" {
		t.Fatalf("snapshot changed under a later transition: %q", expired[0].State)
	}
}

// TestConcurrentTransitionsAndSweeps drives state transitions and expiry
// scans from separate goroutines, the same shape as a wizard handler racing
// the reaper. Run with -race to verify the store synchronizes both sides.
func TestConcurrentTransitionsAndSweeps(t *testing.T) {
	store := session.NewStore()
	s, err := store.Begin("uid-1", 7, "Alice", "collecting", nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	deadline := s.CreatedAt.Add(time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.SetState("uid-1", s.ID, "confirming")
			store.SetState("uid-1", s.ID, "collecting")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.Expired(deadline, time.Minute)
		}
	}()
	wg.Wait()

	if !store.Has("uid-1") {
		t.Fatal("scans must not remove the session")
	}
}

func TestReaper_ExpiryDeadline(t *testing.T) {
	store := session.NewStore()
	var notices []string
	reaper := session.NewReaper(store, session.ReaperConfig{
		Interval: time.Second,
		MaxAge:   180 * time.Second,
		OnExpire: func(_ context.Context, s *session.Session) {
			notices = append(notices, s.OwnerUID)
		},
	})

	s, err := store.Begin("uid-1", 7, "Alice", "collecting", nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	start := s.CreatedAt

	if removed := reaper.Sweep(context.Background(), start.Add(179*time.Second)); removed != 0 {
		t.Fatalf("sweep at T+179s removed %d sessions", removed)
	}
	if !store.Has("uid-1") {
		t.Fatal("session must still exist at T+179s")
	}

	if removed := reaper.Sweep(context.Background(), start.Add(181*time.Second)); removed != 1 {
		t.Fatalf("sweep at T+181s removed %d sessions, want 1", removed)
	}
	if store.Has("uid-1") {
		t.Fatal("session must be gone at T+181s")
	}

	// A later sweep must not notify again.
	reaper.Sweep(context.Background(), start.Add(200*time.Second))
	if len(notices) != 1 || notices[0] != "uid-1" {
		t.Fatalf("expiry notices: got %v, want exactly one for uid-1", notices)
	}
}
