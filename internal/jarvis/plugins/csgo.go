package plugins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/rank"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/steam"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/store"
)

// CSGOConfig configures the CSGO rank registration plugin.
type CSGOConfig struct {
	Allowed []int
	// RankGroups and RankNames are the badge group ids and display names
	// for the 18 competitive ranks, Silver I first.
	RankGroups []int
	RankNames  []string
	// SweepInterval is how often registered ranks are re-checked.
	// Defaults to 2h.
	SweepInterval time.Duration
	// BotProfileURL is shown when the rank lookup cannot see the account.
	BotProfileURL string
}

// CSGO binds TeamSpeak identities to Steam accounts and keeps CSGO rank
// badges current, both on command and through a periodic sweep.
type CSGO struct {
	notifier commands.Notifier
	db       *store.Store
	source   rank.Source
	engine   *rank.Engine
	sweeper  *rank.Sweeper
	cfg      CSGOConfig
}

// NewCSGO creates the CSGO plugin. dir resolves registered users during
// sweeps; groups applies badge changes.
func NewCSGO(notifier commands.Notifier, db *store.Store, source rank.Source, groups rank.GroupService, dir rank.Directory, cfg CSGOConfig) (*CSGO, error) {
	table, err := rank.NewTable(cfg.RankGroups, cfg.RankNames)
	if err != nil {
		return nil, fmt.Errorf("csgo rank table: %w", err)
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 2 * time.Hour
	}

	p := &CSGO{
		notifier: notifier,
		db:       db,
		source:   source,
		engine:   rank.NewEngine(table, groups),
		cfg:      cfg,
	}
	p.sweeper = rank.NewSweeper(p.engine, csgoLister{db}, source, dir, rank.SweeperConfig{
		Game:     store.GameCSGO,
		Interval: cfg.SweepInterval,
		Notify: func(ctx context.Context, caller *commands.Caller, change rank.Change) {
			p.notifyChange(ctx, caller, change)
		},
	})
	return p, nil
}

// csgoLister adapts the registration directory to the sweep contract.
type csgoLister struct {
	db *store.Store
}

func (l csgoLister) List(ctx context.Context) ([]rank.Registration, error) {
	regs, err := l.db.ListRegistrations(ctx, store.GameCSGO)
	if err != nil {
		return nil, err
	}
	out := make([]rank.Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, rank.Registration{ExternalID: reg.ExternalID, LocalUID: reg.TSUID})
	}
	return out, nil
}

func (p *CSGO) Name() string { return "csgo" }

func (p *CSGO) Help() []commands.HelpEntry {
	return []commands.HelpEntry{
		{Command: "!registerCSGO <steam64ID number>", Description: "Register your steam account to receive your CSGO Rank as an icon"},
		{Command: "!deregisterCSGO", Description: "Deregister your steam account and remove your rank icon"},
		{Command: "!statusCSGO", Description: "Check your SteamID and CSGO rank status"},
	}
}

func (p *CSGO) Commands() []string {
	return []string{"!registercsgo", "!deregistercsgo", "!statuscsgo"}
}

func (p *CSGO) Allowed() []int { return p.cfg.Allowed }

// Run sweeps registered ranks until ctx is cancelled.
func (p *CSGO) Run(ctx context.Context) { p.sweeper.Run(ctx) }

func (p *CSGO) OnMessage(ctx context.Context, msg *commands.Message) error {
	cmd, args := commands.SplitArgs(msg.Text)
	switch cmd {
	case "!registercsgo":
		return p.register(ctx, msg, args)
	case "!deregistercsgo":
		return p.deregister(ctx, msg)
	case "!statuscsgo":
		return p.status(ctx, msg)
	}
	return nil
}

func (p *CSGO) register(ctx context.Context, msg *commands.Message, args []string) error {
	if len(args) != 1 {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]No steam ID entered![/b] - Type '!registerCSGO <steam64ID number>'")
	}
	steamID := args[0]
	if !steam.ValidSteam64(steamID) {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]Invalid steam ID entered![/b] - Type '!registerCSGO <steam64ID number>'")
	}

	err := p.db.CreateRegistration(ctx, &store.Registration{
		Game:       store.GameCSGO,
		TSUID:      msg.Caller.UID,
		TSNickname: msg.Caller.Nickname,
		ExternalID: steamID,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you or that steamID are already registered!",
			msg.Caller.Nickname))
	}
	if err != nil {
		return fmt.Errorf("register csgo account: %w", err)
	}

	p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"Hi, [color=#0069ff][b]%s[/b][/color] you are now registered!", msg.Caller.Nickname))

	r, err := p.source.Rank(ctx, rank.Registration{ExternalID: steamID, LocalUID: msg.Caller.UID})
	if err != nil {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like we could not see your rank yet, please add the bot: %s",
			msg.Caller.Nickname, p.cfg.BotProfileURL))
	}

	change, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, r)
	if err != nil {
		return fmt.Errorf("reconcile after register: %w", err)
	}
	if change.Outcome == rank.RankChanged {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] we've added your [color=#0069ff][b]%s[/b][/color] rank!",
			msg.Caller.Nickname, change.RankName))
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're unranked, we'll monitor your rank and add it when you rank up!",
		msg.Caller.Nickname))
}

func (p *CSGO) deregister(ctx context.Context, msg *commands.Message) error {
	reg, err := p.db.RegistrationByUID(ctx, store.GameCSGO, msg.Caller.UID)
	if errors.Is(err, store.ErrNotRegistered) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're not currently registered!",
			msg.Caller.Nickname))
	}
	if err != nil {
		return fmt.Errorf("lookup csgo registration: %w", err)
	}

	if err := p.db.DeleteRegistration(ctx, store.GameCSGO, msg.Caller.UID); err != nil {
		return fmt.Errorf("delete csgo registration: %w", err)
	}

	// Strip any badge the registration earned.
	if _, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, rank.Unranked); err != nil {
		return fmt.Errorf("remove badge after deregister: %w", err)
	}

	return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"Hi, [color=#0069ff][b]%s[/b][/color] your SteamID: %s has been deregistered!",
		msg.Caller.Nickname, reg.ExternalID))
}

func (p *CSGO) status(ctx context.Context, msg *commands.Message) error {
	reg, err := p.db.RegistrationByUID(ctx, store.GameCSGO, msg.Caller.UID)
	if errors.Is(err, store.ErrNotRegistered) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're not currently registered!",
			msg.Caller.Nickname))
	}
	if err != nil {
		return fmt.Errorf("lookup csgo registration: %w", err)
	}

	r, err := p.source.Rank(ctx, rank.Registration{ExternalID: reg.ExternalID, LocalUID: reg.TSUID})
	if err != nil {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] your SteamID is %s but we could not fetch your rank right now!",
			msg.Caller.Nickname, reg.ExternalID))
	}

	change, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, r)
	if err != nil {
		return fmt.Errorf("reconcile on status: %w", err)
	}

	name := "Unranked"
	if r != rank.Unranked {
		name = p.engine.Table().Name(r)
	}
	reply := fmt.Sprintf("Hi, [color=#0069ff][b]%s[/b][/color] your SteamID is %s and your rank is [b]%s[/b]",
		msg.Caller.Nickname, reg.ExternalID, name)
	if change.Outcome != rank.NoChange {
		reply += " (badge updated!)"
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID, reply)
}

func (p *CSGO) notifyChange(ctx context.Context, caller *commands.Caller, change rank.Change) {
	switch change.Outcome {
	case rank.RankChanged:
		p.notifier.Send(ctx, caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] we've added your [color=#0069ff][b]%s[/b][/color] rank!",
			caller.Nickname, change.RankName))
	case rank.BecameUnranked:
		p.notifier.Send(ctx, caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you are unranked now, we'll keep monitoring your account for a change!",
			caller.Nickname))
	}
}
