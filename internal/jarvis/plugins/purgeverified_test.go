package plugins_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/plugins"
)

type fakePurger struct {
	members []commands.Caller
	removed []int
}

func (f *fakePurger) GroupMembers(context.Context, int) ([]commands.Caller, error) {
	return f.members, nil
}

func (f *fakePurger) DelGroups(_ context.Context, databaseID int, _ []int) error {
	f.removed = append(f.removed, databaseID)
	return nil
}

func writeVerified(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verified.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write verified file: %v", err)
	}
	return path
}

func newPurge(t *testing.T, purger *fakePurger, notifier *fakeNotifier, file string) *plugins.PurgeVerified {
	t.Helper()
	p, err := plugins.NewPurgeVerified(notifier, purger, nil, commands.DefaultMessages(), plugins.PurgeVerifiedConfig{
		Allowed:      []int{14},
		GroupID:      40,
		DatabaseFile: file,
	})
	if err != nil {
		t.Fatalf("NewPurgeVerified: %v", err)
	}
	return p
}

func admin() *commands.Caller {
	return &commands.Caller{ClientID: 3, UID: "uid-admin", Nickname: "Ada", Groups: []int{14}}
}

func TestPurge_RemovesAbsentMembers(t *testing.T) {
	purger := &fakePurger{members: []commands.Caller{
		{DatabaseID: 10, UID: "uid-keep", Nickname: "Keep"},
		{DatabaseID: 11, UID: "uid-gone", Nickname: "Gone"},
		{DatabaseID: 12, UID: "uid-keep2", Nickname: "AlsoKeep"},
	}}
	notifier := &fakeNotifier{}
	file := writeVerified(t, `{"users":[{"teamspeakid":"uid-keep"},{"teamspeakid":"uid-keep2"}]}`)
	p := newPurge(t, purger, notifier, file)

	if err := p.OnMessage(context.Background(), &commands.Message{Caller: admin(), Text: "!purgeVerified"}); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if len(purger.removed) != 1 || purger.removed[0] != 11 {
		t.Fatalf("removed: got %v, want [11]", purger.removed)
	}
	if !strings.Contains(notifier.last(), "1 users purged") {
		t.Fatalf("summary: got %q", notifier.last())
	}
}

func TestPurge_NoInvalidUsers(t *testing.T) {
	purger := &fakePurger{members: []commands.Caller{
		{DatabaseID: 10, UID: "uid-keep", Nickname: "Keep"},
	}}
	notifier := &fakeNotifier{}
	file := writeVerified(t, `{"users":[{"teamspeakid":"uid-keep"}]}`)
	p := newPurge(t, purger, notifier, file)

	if err := p.OnMessage(context.Background(), &commands.Message{Caller: admin(), Text: "!purgeVerified"}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(purger.removed) != 0 {
		t.Fatalf("nothing should be removed, got %v", purger.removed)
	}
	if !strings.Contains(notifier.last(), "No invalid users found!") {
		t.Fatalf("summary: got %q", notifier.last())
	}
}

func TestPurge_RejectsInvalidDocument(t *testing.T) {
	purger := &fakePurger{members: []commands.Caller{
		{DatabaseID: 10, UID: "uid-any", Nickname: "Any"},
	}}

	// A document failing the schema must abort before any removal.
	for name, content := range map[string]string{
		"missing users key":  `{"members":[]}`,
		"wrong element type": `{"users":["uid-a"]}`,
		"empty id":           `{"users":[{"teamspeakid":""}]}`,
		"not json":           `users: nope`,
	} {
		t.Run(name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			file := writeVerified(t, content)
			p := newPurge(t, purger, notifier, file)

			err := p.OnMessage(context.Background(), &commands.Message{Caller: admin(), Text: "!purgeVerified"})
			if err == nil {
				t.Fatal("invalid document must error")
			}
			if len(purger.removed) != 0 {
				t.Fatalf("invalid document must not purge, got %v", purger.removed)
			}
		})
	}
}

func TestPurge_MissingFile(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newPurge(t, &fakePurger{}, notifier, filepath.Join(t.TempDir(), "absent.json"))

	err := p.OnMessage(context.Background(), &commands.Message{Caller: admin(), Text: "!purgeVerified"})
	if err == nil {
		t.Fatal("missing file must error")
	}
	if !strings.Contains(notifier.last(), "Caught Internal Error") {
		t.Fatalf("reply: got %q", notifier.last())
	}
}
