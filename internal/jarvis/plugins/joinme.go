package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/rank"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/session"
)

// Mover is the server surface the move-request plugin needs.
type Mover interface {
	FindByName(ctx context.Context, name string) (*commands.Caller, error)
	ChannelName(ctx context.Context, channelID int) (string, error)
	MoveClient(ctx context.Context, clientID, channelID int) error
}

// JoinMeConfig configures the move-request plugin.
type JoinMeConfig struct {
	Allowed []int
	// MaxAge is how long a target has to answer. Defaults to 2m.
	MaxAge time.Duration
}

// moveRequest is the pending state held per target.
type moveRequest struct {
	requesterClientID int
	requesterChannel  int
	requesterNick     string
}

// JoinMe asks named users to move to the requester's channel. Sessions are
// keyed by the TARGET's identity: the target's !yes or !no is the wizard
// input that settles the request.
type JoinMe struct {
	notifier commands.Notifier
	mover    Mover
	sessions *session.Store
	reaper   *session.Reaper
	msgs     commands.Messages
	cfg      JoinMeConfig
}

// NewJoinMe creates the move-request plugin.
func NewJoinMe(notifier commands.Notifier, mover Mover, msgs commands.Messages, cfg JoinMeConfig) *JoinMe {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 2 * time.Minute
	}
	p := &JoinMe{
		notifier: notifier,
		mover:    mover,
		sessions: session.NewStore(),
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

func (p *JoinMe) Name() string { return "joinme" }

func (p *JoinMe) Help() []commands.HelpEntry {
	return []commands.HelpEntry{
		{Command: "!joinMe <userName> <userName2>...", Description: "Requests another user to join your channel. The bot moves them if they accept."},
	}
}

func (p *JoinMe) Commands() []string { return []string{"!joinme"} }

func (p *JoinMe) Allowed() []int { return p.cfg.Allowed }

// HasSession reports whether the uid is a pending move target.
func (p *JoinMe) HasSession(uid string) bool { return p.sessions.Has(uid) }

// Run reaps unanswered requests until ctx is cancelled.
func (p *JoinMe) Run(ctx context.Context) { p.reaper.Run(ctx) }

func (p *JoinMe) OnMessage(ctx context.Context, msg *commands.Message) error {
	if s, ok := p.sessions.Get(msg.Caller.UID); ok {
		return p.answer(ctx, s, msg)
	}

	cmd, targets := commands.SplitArgs(msg.Text)
	if cmd != "!joinme" {
		return nil
	}

	if len(targets) == 0 {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]No user names entered![/b] - Type '!joinMe <userName>'")
	}

	for _, name := range targets {
		if name == msg.Caller.Nickname {
			return p.notifier.Send(ctx, msg.Caller.ClientID, "[b]Joining on yourself is not possible![/b]")
		}
	}

	channelName, err := p.mover.ChannelName(ctx, msg.Caller.ChannelID)
	if err != nil {
		return fmt.Errorf("resolve requester channel: %w", err)
	}

	sent := 0
	for _, name := range targets {
		target, err := p.mover.FindByName(ctx, name)
		if errors.Is(err, rank.ErrNotFound) {
			p.notifier.Send(ctx, msg.Caller.ClientID,
				fmt.Sprintf("[color=#0069ff][b]%s[/b][/color] is offline or unknown", name))
			continue
		}
		if err != nil {
			slog.Warn("resolve move target", "name", name, "err", err)
			continue
		}
		if target.ChannelID == msg.Caller.ChannelID {
			p.notifier.Send(ctx, msg.Caller.ClientID,
				fmt.Sprintf("[color=#0069ff][b]%s[/b][/color] is already here!", name))
			continue
		}
		if p.sessions.Has(target.UID) {
			p.notifier.Send(ctx, msg.Caller.ClientID,
				fmt.Sprintf("[color=#0069ff][b]%s[/b][/color] already requested, please wait up to 2min before requesting again!", name))
			continue
		}

		_, err = p.sessions.Begin(target.UID, target.ClientID, target.Nickname, "pending", &moveRequest{
			requesterClientID: msg.Caller.ClientID,
			requesterChannel:  msg.Caller.ChannelID,
			requesterNick:     msg.Caller.Nickname,
		})
		if err != nil {
			continue
		}
		p.notifier.Send(ctx, target.ClientID, fmt.Sprintf(
			"\n Would you like to join [color=#0069ff][b]%s[/b][/color] in Channel: %s? \n Type !yes to move, or !no to remain",
			msg.Caller.Nickname, channelName))
		sent++
	}

	if sent == 0 {
		return nil
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID,
		fmt.Sprintf("[b]Request sent to %d clients![/b]", sent))
}

// answer settles a pending request with the target's reply. Anything that
// is not an affirmative counts as a decline.
func (p *JoinMe) answer(ctx context.Context, s *session.Session, msg *commands.Message) error {
	req := s.Data.(*moveRequest)
	defer func() {
		p.sessions.EndIfMatch(s.OwnerUID, s.ID)
		p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.Terminate)
	}()

	if strings.HasPrefix(strings.ToLower(msg.Text), "!y") {
		if err := p.mover.MoveClient(ctx, msg.Caller.ClientID, req.requesterChannel); err != nil {
			slog.Error("move accepted target", "target", msg.Caller.Nickname, "err", err)
		}
		return nil
	}

	return p.notifier.Send(ctx, req.requesterClientID, fmt.Sprintf(
		"Yo, [color=#0069ff][b]%s[/b][/color] does not want to move to your channel!",
		msg.Caller.Nickname))
}
