package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/channels"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/relay"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/session"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/ts"
)

// Wizard states for the clan builder.
const (
	stateCollecting   = "collecting"
	stateConfirmGroup = "confirming-group"
	stateNamingGroup  = "naming-group"
)

// stopKeyword submits the collected batch and ends name collection.
const stopKeyword = "!stop"

// maxChannelName bounds accepted channel names, counted in runes.
const maxChannelName = 20

// GroupCreator creates the companion server group for a finished clan.
type GroupCreator interface {
	CopyGroup(ctx context.Context, templateID int, name string) (int, error)
	SetGroupSortID(ctx context.Context, groupID, sortID int) error
}

// CreateClanConfig configures the clan wizard.
type CreateClanConfig struct {
	// Allowed lists the server groups permitted to run the wizard.
	Allowed []int
	// TemplateGroupID is the server group copied for each new clan group.
	TemplateGroupID int
	// SortIDStart and SortIDInc derive a clan group's sort value from its
	// tag so groups list alphabetically.
	SortIDStart int
	SortIDInc   int
	// MaxAge is the session lifetime before the reaper expires it.
	// Defaults to 3m.
	MaxAge time.Duration
}

// clanData is the per-session collected state. It is only touched on the
// message pump goroutine; messages arriving while the batch executor runs
// queue behind it on the notification channel.
type clanData struct {
	batch []*channels.Spec
}

// CreateClan drives the multi-step clan channel wizard: collect channel
// names, build the batch, then optionally create a companion server group.
type CreateClan struct {
	notifier commands.Notifier
	sessions *session.Store
	reaper   *session.Reaper
	executor *channels.Executor
	groups   GroupCreator
	relay    relay.Relay
	msgs     commands.Messages
	cfg      CreateClanConfig
}

// NewCreateClan creates the clan wizard plugin.
func NewCreateClan(notifier commands.Notifier, executor *channels.Executor, groups GroupCreator, rly relay.Relay, msgs commands.Messages, cfg CreateClanConfig) *CreateClan {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3 * time.Minute
	}
	if cfg.SortIDStart == 0 {
		cfg.SortIDStart = 901
	}
	if cfg.SortIDInc == 0 {
		cfg.SortIDInc = 100
	}
	if rly == nil {
		rly = relay.Noop{}
	}

	p := &CreateClan{
		notifier: notifier,
		sessions: session.NewStore(),
		executor: executor,
		groups:   groups,
		relay:    rly,
		msgs:     msgs,
		cfg:      cfg,
	}
	p.reaper = session.NewReaper(p.sessions, session.ReaperConfig{
		MaxAge: cfg.MaxAge,
		OnExpire: func(ctx context.Context, s *session.Session) {
			p.notifier.Send(ctx, s.ClientID, p.msgs.Expired)
		},
	})
	return p
}

func (p *CreateClan) Name() string { return "createclan" }

func (p *CreateClan) Help() []commands.HelpEntry {
	return []commands.HelpEntry{
		{Command: "!createClan", Description: "Initiate channel template creation for a clan"},
	}
}

func (p *CreateClan) Commands() []string { return []string{"!createclan"} }

func (p *CreateClan) Allowed() []int { return p.cfg.Allowed }

// HasSession marks the caller's messages as wizard input while a session is
// open.
func (p *CreateClan) HasSession(uid string) bool { return p.sessions.Has(uid) }

// Run reaps abandoned sessions until ctx is cancelled.
func (p *CreateClan) Run(ctx context.Context) { p.reaper.Run(ctx) }

func (p *CreateClan) OnMessage(ctx context.Context, msg *commands.Message) error {
	if s, ok := p.sessions.Get(msg.Caller.UID); ok {
		return p.advance(ctx, s, msg)
	}

	if msg.Command() != "!createclan" {
		return nil
	}

	_, err := p.sessions.Begin(msg.Caller.UID, msg.Caller.ClientID, msg.Caller.Nickname, stateCollecting, &clanData{})
	if err != nil {
		return err
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID,
		"Enter Clan Name: (Type '!stop' at any point to create the channels!)")
}

func (p *CreateClan) advance(ctx context.Context, s *session.Session, msg *commands.Message) error {
	data := s.Data.(*clanData)

	switch s.State {
	case stateCollecting:
		return p.collect(ctx, s, data, msg)
	case stateConfirmGroup:
		return p.confirmGroup(ctx, s, msg)
	case stateNamingGroup:
		return p.nameGroup(ctx, s, msg)
	default:
		p.terminate(ctx, s, msg.Caller.ClientID)
		return fmt.Errorf("unknown wizard state %q", s.State)
	}
}

// collect handles one channel name reply, or the stop keyword that submits
// the batch.
func (p *CreateClan) collect(ctx context.Context, s *session.Session, data *clanData, msg *commands.Message) error {
	name, ok := sanitizeName(msg.Text)
	if !ok {
		return p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.Sanitation)
	}

	// A command typed mid-collection is almost always a slip, not a name.
	if strings.HasPrefix(name, commands.Prefix) && !strings.EqualFold(name, stopKeyword) {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			fmt.Sprintf("[b]Command Entered[/b] - Please re-enter Channel %d Name:", len(data.batch)))
	}

	if !strings.EqualFold(name, stopKeyword) {
		if len(data.batch) == 0 {
			data.batch = append(data.batch, channels.NewParentSpec(name))
		} else {
			data.batch = append(data.batch, channels.NewChildSpec(name, data.batch[0]))
		}
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			fmt.Sprintf("Enter Channel %d Name:", len(data.batch)))
	}

	// Stop with nothing collected just ends the session.
	if len(data.batch) == 0 {
		p.terminate(ctx, s, msg.Caller.ClientID)
		return nil
	}

	p.notifier.Send(ctx, msg.Caller.ClientID,
		fmt.Sprintf("Constructing %d channels...", len(data.batch)))

	result, err := p.executor.Execute(ctx, data.batch)
	if err != nil {
		// Parent failure aborts the whole batch.
		p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.Internal+err.Error())
		p.terminate(ctx, s, msg.Caller.ClientID)
		return err
	}

	p.notifier.Send(ctx, msg.Caller.ClientID, result.Summary())
	p.relay.Post(ctx, fmt.Sprintf("clan channels built by %s: %s", s.Nickname, result.Summary()))

	p.sessions.SetState(s.OwnerUID, s.ID, stateConfirmGroup)
	return p.notifier.Send(ctx, msg.Caller.ClientID, "[b]Create Clan Group?[/b] (default = No) [!y/!n]")
}

func (p *CreateClan) confirmGroup(ctx context.Context, s *session.Session, msg *commands.Message) error {
	reply := strings.ToLower(msg.Text)
	if reply != "!y" && reply != "!yes" {
		p.terminate(ctx, s, msg.Caller.ClientID)
		return nil
	}
	p.sessions.SetState(s.OwnerUID, s.ID, stateNamingGroup)
	return p.notifier.Send(ctx, msg.Caller.ClientID, "Enter Clan Tag: (Between 2 & 5 characters!)")
}

func (p *CreateClan) nameGroup(ctx context.Context, s *session.Session, msg *commands.Message) error {
	tag := strings.TrimSpace(msg.Text)
	if n := utf8.RuneCountInString(tag); n < 2 || n > 5 {
		return p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.Sanitation)
	}
	tag = strings.ToUpper(tag)

	sgid, err := p.groups.CopyGroup(ctx, p.cfg.TemplateGroupID, tag)
	if err != nil {
		// A taken tag keeps the wizard in this state for another attempt.
		if errors.Is(err, ts.ErrDuplicateGroup) {
			return p.notifier.Send(ctx, msg.Caller.ClientID,
				fmt.Sprintf("[b]%s already exists! Try another tag:[/b]", tag))
		}
		p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.External+err.Error())
		p.terminate(ctx, s, msg.Caller.ClientID)
		return err
	}

	if err := p.groups.SetGroupSortID(ctx, sgid, p.sortID(tag)); err != nil {
		slog.Error("set clan group sort id", "sgid", sgid, "tag", tag, "err", err)
	}

	p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf("Clan group: %s added successfully", tag))
	p.relay.Post(ctx, fmt.Sprintf("clan group %s created by %s", tag, s.Nickname))
	p.terminate(ctx, s, msg.Caller.ClientID)
	return nil
}

func (p *CreateClan) terminate(ctx context.Context, s *session.Session, clientID int) {
	p.sessions.EndIfMatch(s.OwnerUID, s.ID)
	p.notifier.Send(ctx, clientID, p.msgs.Terminate)
}

// sortID derives the i_group_sort_id value from the tag's first letter so
// clan groups list alphabetically: A lands at start+100, B at start+200 and
// so on. Non-letter leading characters stay at the start value.
func (p *CreateClan) sortID(tag string) int {
	tag = strings.ToLower(tag)
	c := tag[0]
	index := 0
	if c >= 'a' && c <= 'z' {
		index = int(c-'a') + 1
	}
	return p.cfg.SortIDStart + index*p.cfg.SortIDInc
}

// sanitizeName trims a candidate channel name and rejects over-length ones.
func sanitizeName(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxChannelName {
		return "", false
	}
	return text, true
}
