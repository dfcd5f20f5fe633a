package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "jarvis-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestCreateAndGetRegistration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reg := &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "76561198000000001",
	}
	if err := s.CreateRegistration(ctx, reg); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	if reg.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.RegistrationByUID(ctx, store.GameCSGO, "uid-a")
	if err != nil {
		t.Fatalf("RegistrationByUID: %v", err)
	}
	if got.ExternalID != "76561198000000001" || got.TSNickname != "Alice" {
		t.Fatalf("unexpected registration: %+v", got)
	}

	got, err = s.RegistrationByExternalID(ctx, store.GameCSGO, "76561198000000001")
	if err != nil {
		t.Fatalf("RegistrationByExternalID: %v", err)
	}
	if got.TSUID != "uid-a" {
		t.Fatalf("unexpected registration: %+v", got)
	}
}

func TestCreateRegistration_RejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "76561198000000001",
	}
	if err := s.CreateRegistration(ctx, first); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	// Same server identity, different account.
	err := s.CreateRegistration(ctx, &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "76561198000000002",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate uid: got %v, want ErrDuplicate", err)
	}

	// Different server identity, same account.
	err = s.CreateRegistration(ctx, &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-b",
		TSNickname: "Bob",
		ExternalID: "76561198000000001",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate account: got %v, want ErrDuplicate", err)
	}

	// Same identity under a different game is a separate binding.
	err = s.CreateRegistration(ctx, &store.Registration{
		Game:       store.GameLOL,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "summoner-1",
		Region:     sql.NullString{String: "EUW1", Valid: true},
		Queue:      sql.NullString{String: "RANKED_SOLO_5x5", Valid: true},
	})
	if err != nil {
		t.Fatalf("cross-game registration should succeed: %v", err)
	}
}

func TestDeleteRegistration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.DeleteRegistration(ctx, store.GameCSGO, "uid-missing"); !errors.Is(err, store.ErrNotRegistered) {
		t.Fatalf("delete missing: got %v, want ErrNotRegistered", err)
	}

	reg := &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "76561198000000001",
	}
	if err := s.CreateRegistration(ctx, reg); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	if err := s.DeleteRegistration(ctx, store.GameCSGO, "uid-a"); err != nil {
		t.Fatalf("DeleteRegistration: %v", err)
	}
	if _, err := s.RegistrationByUID(ctx, store.GameCSGO, "uid-a"); !errors.Is(err, store.ErrNotRegistered) {
		t.Fatalf("lookup after delete: got %v, want ErrNotRegistered", err)
	}

	// After delete the same identity can register again.
	if err := s.CreateRegistration(ctx, &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      "uid-a",
		TSNickname: "Alice",
		ExternalID: "76561198000000009",
	}); err != nil {
		t.Fatalf("re-register after delete: %v", err)
	}
}

func TestListRegistrations_FiltersByGame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, reg := range []*store.Registration{
		{Game: store.GameCSGO, TSUID: "uid-a", TSNickname: "Alice", ExternalID: "1"},
		{Game: store.GameCSGO, TSUID: "uid-b", TSNickname: "Bob", ExternalID: "2"},
		{Game: store.GameLOL, TSUID: "uid-a", TSNickname: "Alice", ExternalID: "summoner-1"},
	} {
		if err := s.CreateRegistration(ctx, reg); err != nil {
			t.Fatalf("CreateRegistration %s/%s: %v", reg.Game, reg.TSUID, err)
		}
	}

	regs, err := s.ListRegistrations(ctx, store.GameCSGO)
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("csgo registrations: got %d, want 2", len(regs))
	}
	if regs[0].TSUID != "uid-a" || regs[1].TSUID != "uid-b" {
		t.Fatalf("unexpected order: %+v", regs)
	}
}
