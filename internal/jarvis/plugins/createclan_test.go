package plugins_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/channels"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/plugins"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/ts"
)

type sentMessage struct {
	clientID int
	text     string
}

type fakeNotifier struct {
	sent []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, clientID int, text string) error {
	f.sent = append(f.sent, sentMessage{clientID: clientID, text: text})
	return nil
}

func (f *fakeNotifier) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].text
}

type fakeChannelService struct {
	nextID     int
	creates    []string
	failCreate map[string]error
}

func (f *fakeChannelService) Create(_ context.Context, name string, attrs map[string]string) (int, error) {
	f.creates = append(f.creates, name)
	if err, ok := f.failCreate[name]; ok {
		return 0, err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeChannelService) SetPermission(context.Context, int, string, int) error {
	return nil
}

type fakeGroupCreator struct {
	copies  []string
	sortIDs map[int]int
	nextID  int
	failTag map[string]error
}

func (f *fakeGroupCreator) CopyGroup(_ context.Context, _ int, name string) (int, error) {
	if err, ok := f.failTag[name]; ok {
		return 0, err
	}
	f.copies = append(f.copies, name)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeGroupCreator) SetGroupSortID(_ context.Context, groupID, sortID int) error {
	if f.sortIDs == nil {
		f.sortIDs = make(map[int]int)
	}
	f.sortIDs[groupID] = sortID
	return nil
}

func caller() *commands.Caller {
	return &commands.Caller{ClientID: 7, DatabaseID: 70, UID: "uid-wizard", Nickname: "Cleo", Groups: []int{14}}
}

func newWizard(svc *fakeChannelService, groups *fakeGroupCreator, notifier *fakeNotifier) *plugins.CreateClan {
	return plugins.NewCreateClan(notifier, channels.NewExecutor(svc), groups, nil,
		commands.DefaultMessages(), plugins.CreateClanConfig{
			Allowed:         []int{14},
			TemplateGroupID: 118,
		})
}

func say(t *testing.T, p *plugins.CreateClan, text string) {
	t.Helper()
	if err := p.OnMessage(context.Background(), &commands.Message{Caller: caller(), Text: text}); err != nil {
		t.Fatalf("OnMessage(%q): %v", text, err)
	}
}

func TestWizard_FullFlowWithGroup(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	groups := &fakeGroupCreator{}
	notifier := &fakeNotifier{}
	p := newWizard(svc, groups, notifier)

	say(t, p, "!createClan")
	if !p.HasSession("uid-wizard") {
		t.Fatal("session should be open after trigger")
	}

	say(t, p, "Epic")
	say(t, p, "Lounge")
	say(t, p, "Scrims")
	say(t, p, "!stop")

	// Parent decorated and first, children in entry order.
	if len(svc.creates) != 3 {
		t.Fatalf("creates: got %v", svc.creates)
	}
	if !strings.Contains(svc.creates[0], "Epic") || !strings.HasPrefix(svc.creates[0], "[cspacer") {
		t.Fatalf("first create must be the decorated parent, got %q", svc.creates[0])
	}
	if svc.creates[1] != "Lounge" || svc.creates[2] != "Scrims" {
		t.Fatalf("children out of order: %v", svc.creates)
	}
	if !strings.Contains(notifier.last(), "Create Clan Group?") {
		t.Fatalf("expected group confirmation prompt, got %q", notifier.last())
	}

	say(t, p, "!y")
	if !strings.Contains(notifier.last(), "Clan Tag") {
		t.Fatalf("expected tag prompt, got %q", notifier.last())
	}

	say(t, p, "epic")
	if len(groups.copies) != 1 || groups.copies[0] != "EPIC" {
		t.Fatalf("group copies: got %v, want EPIC", groups.copies)
	}
	// E is the 5th letter: 901 + 5*100.
	if got := groups.sortIDs[1]; got != 1401 {
		t.Fatalf("sort id: got %d, want 1401", got)
	}

	if p.HasSession("uid-wizard") {
		t.Fatal("session must end after group creation")
	}
}

func TestWizard_DeclineGroupTerminates(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	notifier := &fakeNotifier{}
	p := newWizard(svc, &fakeGroupCreator{}, notifier)

	say(t, p, "!createclan")
	say(t, p, "Epic")
	say(t, p, "!stop")
	say(t, p, "!n")

	if p.HasSession("uid-wizard") {
		t.Fatal("session must end on decline")
	}
	if !strings.Contains(notifier.last(), "Session ended!") {
		t.Fatalf("expected terminate notice, got %q", notifier.last())
	}
}

func TestWizard_CommandMidCollectionReprompts(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	notifier := &fakeNotifier{}
	p := newWizard(svc, &fakeGroupCreator{}, notifier)

	say(t, p, "!createclan")
	say(t, p, "Epic")

	// A second trigger mid-wizard is wizard input, not a new session.
	say(t, p, "!createclan")
	if !strings.Contains(notifier.last(), "Command Entered") {
		t.Fatalf("expected re-prompt, got %q", notifier.last())
	}
	if !p.HasSession("uid-wizard") {
		t.Fatal("session must survive a stray command")
	}
	if len(svc.creates) != 0 {
		t.Fatal("nothing should be created yet")
	}
}

func TestWizard_SanitationRejectsLongNames(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	notifier := &fakeNotifier{}
	p := newWizard(svc, &fakeGroupCreator{}, notifier)

	say(t, p, "!createclan")
	say(t, p, strings.Repeat("x", 21))
	if !strings.Contains(notifier.last(), "Invalid entry") {
		t.Fatalf("expected sanitation notice, got %q", notifier.last())
	}

	// The rejected name must not advance the batch; the next valid reply
	// is still the parent.
	say(t, p, "  Epic  ")
	say(t, p, "!stop")
	if len(svc.creates) != 1 || !strings.Contains(svc.creates[0], "Epic") {
		t.Fatalf("creates: got %v", svc.creates)
	}
}

func TestWizard_MultiByteNamesCountedInRunes(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	groups := &fakeGroupCreator{}
	notifier := &fakeNotifier{}
	p := newWizard(svc, groups, notifier)

	say(t, p, "!createclan")

	// Seven characters but 21 bytes; the bound counts characters.
	say(t, p, strings.Repeat("★", 7))
	if strings.Contains(notifier.last(), "Invalid entry") {
		t.Fatalf("7-rune name rejected: %q", notifier.last())
	}

	// 21 characters is over the bound regardless of encoding.
	say(t, p, strings.Repeat("★", 21))
	if !strings.Contains(notifier.last(), "Invalid entry") {
		t.Fatalf("21-rune name accepted: %q", notifier.last())
	}

	say(t, p, "!stop")
	if len(svc.creates) != 1 || !strings.Contains(svc.creates[0], strings.Repeat("★", 7)) {
		t.Fatalf("creates: got %v", svc.creates)
	}

	say(t, p, "!y")
	// A two-character tag is in bounds even at four bytes.
	say(t, p, "Äö")
	if len(groups.copies) != 1 || groups.copies[0] != "ÄÖ" {
		t.Fatalf("copies: got %v, want ÄÖ", groups.copies)
	}
}

func TestWizard_StopWithNothingCollected(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	notifier := &fakeNotifier{}
	p := newWizard(svc, &fakeGroupCreator{}, notifier)

	say(t, p, "!createclan")
	say(t, p, "!stop")

	if p.HasSession("uid-wizard") {
		t.Fatal("empty stop must end the session")
	}
	if len(svc.creates) != 0 {
		t.Fatal("no batch should be submitted")
	}
}

func TestWizard_ParentFailureTerminates(t *testing.T) {
	svc := &fakeChannelService{
		nextID:     100,
		failCreate: map[string]error{"[cspacer123] ★ Epic ★": errors.New("channel name already in use")},
	}
	notifier := &fakeNotifier{}
	p := newWizard(svc, &fakeGroupCreator{}, notifier)

	say(t, p, "!createclan")
	say(t, p, "Epic")
	say(t, p, "Lounge")

	err := p.OnMessage(context.Background(), &commands.Message{Caller: caller(), Text: "!stop"})
	if err == nil {
		t.Fatal("parent failure should surface")
	}
	if p.HasSession("uid-wizard") {
		t.Fatal("session must end after batch failure")
	}
	// Only the parent was attempted.
	if len(svc.creates) != 1 {
		t.Fatalf("creates: got %v", svc.creates)
	}
}

func TestWizard_DuplicateTagRepromptsInState(t *testing.T) {
	svc := &fakeChannelService{nextID: 100}
	groups := &fakeGroupCreator{failTag: map[string]error{
		"EPIC": fmt.Errorf("servergroupcopy name=%q: %w", "EPIC", ts.ErrDuplicateGroup),
	}}
	notifier := &fakeNotifier{}
	p := newWizard(svc, groups, notifier)

	say(t, p, "!createclan")
	say(t, p, "Epic")
	say(t, p, "!stop")
	say(t, p, "!y")
	say(t, p, "EPIC")

	if !strings.Contains(notifier.last(), "already exists! Try another tag") {
		t.Fatalf("expected duplicate re-prompt, got %q", notifier.last())
	}
	if !p.HasSession("uid-wizard") {
		t.Fatal("duplicate tag must keep the session open")
	}

	// A fresh tag succeeds.
	say(t, p, "NEAT")
	if len(groups.copies) != 1 || groups.copies[0] != "NEAT" {
		t.Fatalf("copies: got %v", groups.copies)
	}
	if p.HasSession("uid-wizard") {
		t.Fatal("session must end after successful group creation")
	}
}
