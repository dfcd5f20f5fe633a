package plugins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/rank"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/riot"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/store"
)

// LOLConfig configures the League rank registration plugin.
type LOLConfig struct {
	Allowed []int
	// RankGroups are the badge group ids for the nine League tiers, Iron
	// first. Names come from riot.Tiers.
	RankGroups []int
	// SweepInterval is how often registered ranks are re-checked.
	// Defaults to 2h.
	SweepInterval time.Duration
}

// LOL binds TeamSpeak identities to League summoners and keeps tier badges
// current, both on command and through a periodic sweep.
type LOL struct {
	notifier commands.Notifier
	db       *store.Store
	riot     *riot.Client
	source   rank.Source
	engine   *rank.Engine
	sweeper  *rank.Sweeper
	cfg      LOLConfig
}

// NewLOL creates the League plugin.
func NewLOL(notifier commands.Notifier, db *store.Store, client *riot.Client, groups rank.GroupService, dir rank.Directory, cfg LOLConfig) (*LOL, error) {
	table, err := rank.NewTable(cfg.RankGroups, riot.Tiers)
	if err != nil {
		return nil, fmt.Errorf("lol rank table: %w", err)
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 2 * time.Hour
	}

	source := riot.NewSource(client)
	p := &LOL{
		notifier: notifier,
		db:       db,
		riot:     client,
		source:   source,
		engine:   rank.NewEngine(table, groups),
		cfg:      cfg,
	}
	p.sweeper = rank.NewSweeper(p.engine, lolLister{db}, source, dir, rank.SweeperConfig{
		Game:     store.GameLOL,
		Interval: cfg.SweepInterval,
		Notify: func(ctx context.Context, caller *commands.Caller, change rank.Change) {
			p.notifyChange(ctx, caller, change)
		},
	})
	return p, nil
}

// lolLister adapts the registration directory to the sweep contract.
type lolLister struct {
	db *store.Store
}

func (l lolLister) List(ctx context.Context) ([]rank.Registration, error) {
	regs, err := l.db.ListRegistrations(ctx, store.GameLOL)
	if err != nil {
		return nil, err
	}
	out := make([]rank.Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, rank.Registration{
			ExternalID: reg.ExternalID,
			LocalUID:   reg.TSUID,
			Region:     reg.Region.String,
			Queue:      reg.Queue.String,
		})
	}
	return out, nil
}

func (p *LOL) Name() string { return "lol" }

func (p *LOL) Help() []commands.HelpEntry {
	return []commands.HelpEntry{
		{Command: "!registerLOL <summoner name> <region e.g. EUW> <type e.g. Solo or Flex>", Description: "Register your League account to receive your LOL Rank as an icon"},
		{Command: "!deregisterLOL", Description: "Deregister your League account and remove your rank icon"},
		{Command: "!statusLOL", Description: "Check your registration status and LOL rank status"},
	}
}

func (p *LOL) Commands() []string {
	return []string{"!registerlol", "!deregisterlol", "!statuslol"}
}

func (p *LOL) Allowed() []int { return p.cfg.Allowed }

// Run sweeps registered ranks until ctx is cancelled.
func (p *LOL) Run(ctx context.Context) { p.sweeper.Run(ctx) }

func (p *LOL) OnMessage(ctx context.Context, msg *commands.Message) error {
	cmd, args := commands.SplitArgs(msg.Text)
	switch cmd {
	case "!registerlol":
		return p.register(ctx, msg, args)
	case "!deregisterlol":
		return p.deregister(ctx, msg)
	case "!statuslol":
		return p.status(ctx, msg)
	}
	return nil
}

func (p *LOL) register(ctx context.Context, msg *commands.Message, args []string) error {
	if len(args) != 3 {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]No summoner name entered![/b] - Type '!registerLOL <summoner name> <region e.g. EUW> <type e.g. Solo/Flex>'")
	}
	name, regionArg, queueArg := args[0], args[1], args[2]

	queue, err := riot.NormalizeQueue(queueArg)
	if err != nil {
		return p.notifier.Send(ctx, msg.Caller.ClientID, "[b]Invalid type entered![/b] - Valid types: Solo or Flex")
	}
	region, err := riot.NormalizeRegion(regionArg)
	if err != nil {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]Invalid region entered![/b] - Valid regions: BR, EUN, EUW, JP, KR, LA, NA, OC, RU, TR")
	}
	if len(name) < 3 || len(name) > 16 {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			"[b]Invalid summoner name entered![/b] - Type '!registerLOL <summoner name> <region e.g. EUW> <type e.g. Solo/Flex>'")
	}

	summoner, err := p.riot.SummonerByName(ctx, region, name)
	if errors.Is(err, riot.ErrSummonerNotFound) {
		return p.notifier.Send(ctx, msg.Caller.ClientID,
			fmt.Sprintf("[b]Summoner name does not exist on the %s server![/b]", region))
	}
	if err != nil {
		return fmt.Errorf("summoner lookup: %w", err)
	}

	err = p.db.CreateRegistration(ctx, &store.Registration{
		Game:         store.GameLOL,
		TSUID:        msg.Caller.UID,
		TSNickname:   msg.Caller.Nickname,
		ExternalID:   summoner.ID,
		SummonerName: sql.NullString{String: summoner.Name, Valid: true},
		Region:       sql.NullString{String: region, Valid: true},
		Queue:        sql.NullString{String: queue, Valid: true},
	})
	if errors.Is(err, store.ErrDuplicate) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you or [color=#0069ff][b]%s[/b][/color] are already registered!",
			msg.Caller.Nickname, summoner.Name))
	}
	if err != nil {
		return fmt.Errorf("register lol account: %w", err)
	}

	r, err := p.source.Rank(ctx, rank.Registration{
		ExternalID: summoner.ID, LocalUID: msg.Caller.UID, Region: region, Queue: queue,
	})
	if err != nil {
		return fmt.Errorf("initial rank lookup: %w", err)
	}

	change, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, r)
	if err != nil {
		return fmt.Errorf("reconcile after register: %w", err)
	}
	if change.Outcome == rank.RankChanged {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] we've added your [color=#0069ff][b]%s[/b][/color] in [color=#0069ff][b]%s[/b][/color] rank!",
			msg.Caller.Nickname, change.RankName, queueArg))
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're unranked in: [b]%s[/b], we'll monitor your rank and add it when you rank up!",
		msg.Caller.Nickname, queueArg))
}

func (p *LOL) deregister(ctx context.Context, msg *commands.Message) error {
	reg, err := p.db.RegistrationByUID(ctx, store.GameLOL, msg.Caller.UID)
	if errors.Is(err, store.ErrNotRegistered) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're not currently registered!",
			msg.Caller.Nickname))
	}
	if err != nil {
		return fmt.Errorf("lookup lol registration: %w", err)
	}

	if err := p.db.DeleteRegistration(ctx, store.GameLOL, msg.Caller.UID); err != nil {
		return fmt.Errorf("delete lol registration: %w", err)
	}

	if _, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, rank.Unranked); err != nil {
		return fmt.Errorf("remove badge after deregister: %w", err)
	}

	return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"Hi, [color=#0069ff][b]%s[/b][/color] your League account [color=#0069ff][b]%s[/b][/color] has been deregistered!",
		msg.Caller.Nickname, reg.SummonerName.String))
}

func (p *LOL) status(ctx context.Context, msg *commands.Message) error {
	reg, err := p.db.RegistrationByUID(ctx, store.GameLOL, msg.Caller.UID)
	if errors.Is(err, store.ErrNotRegistered) {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] looks like you're not currently registered!",
			msg.Caller.Nickname))
	}
	if err != nil {
		return fmt.Errorf("lookup lol registration: %w", err)
	}

	r, err := p.source.Rank(ctx, rank.Registration{
		ExternalID: reg.ExternalID,
		LocalUID:   reg.TSUID,
		Region:     reg.Region.String,
		Queue:      reg.Queue.String,
	})
	if err != nil {
		return p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
			"Hi, [color=#0069ff][b]%s[/b][/color] you're registered as [b]%s[/b] but we could not fetch your rank right now!",
			msg.Caller.Nickname, reg.SummonerName.String))
	}

	change, err := p.engine.Reconcile(ctx, msg.Caller.DatabaseID, msg.Caller.Groups, r)
	if err != nil {
		return fmt.Errorf("reconcile on status: %w", err)
	}

	name := "Unranked"
	if r != rank.Unranked {
		name = p.engine.Table().Name(r)
	}
	reply := fmt.Sprintf("Hi, [color=#0069ff][b]%s[/b][/color] summoner [b]%s[/b] (%s) is [b]%s[/b] in %s",
		msg.Caller.Nickname, reg.SummonerName.String, reg.Region.String, name, reg.Queue.String)
	if change.Outcome != rank.NoChange {
		reply += " (badge updated!)"
	}
	return p.notifier.Send(ctx, msg.Caller.ClientID, reply)
}

func (p *LOL) notifyChange(ctx context.Context, caller *commands.Caller, change rank.Change) {
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
