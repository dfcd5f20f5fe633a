// Package app assembles and runs the Jarvis bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Forge-Media/teamspeak-bot/common/trace"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/channels"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/config"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/plugins"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/relay"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/riot"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/steam"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/store"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/ts"
)

// App ties the ServerQuery session, the registration store, the ops relay
// and the plugin registry together.
type App struct {
	config *config.Config
	db     *store.Store
	client *ts.Client
	relay  relay.Relay
	router *commands.Router
}

// New connects to the TeamSpeak server and wires all configured plugins.
func New(cfg *config.Config) (*App, error) {
	db, err := store.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open registration store: %w", err)
	}

	client, err := ts.Connect(ts.Config{
		Addr:     cfg.ServerQuery.Addr,
		Username: cfg.ServerQuery.Username,
		Password: cfg.ServerQuery.Password,
		ServerID: cfg.ServerQuery.ServerID,
		Nickname: cfg.ServerQuery.Nickname,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	var rly relay.Relay = relay.Noop{}
	if cfg.RelayEnabled() {
		m, err := relay.NewMatrix(relay.Config{
			Homeserver:  cfg.Relay.Homeserver,
			UserID:      cfg.Relay.UserID,
			AccessToken: cfg.Relay.AccessToken,
			RoomID:      cfg.Relay.RoomID,
		})
		if err != nil {
			client.Close()
			db.Close()
			return nil, fmt.Errorf("ops relay: %w", err)
		}
		rly = m
	}

	a := &App{
		config: cfg,
		db:     db,
		client: client,
		relay:  rly,
		router: commands.NewRouter(client, cfg.Messages.Forbidden),
	}
	if err := a.registerPlugins(); err != nil {
		client.Close()
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) registerPlugins() error {
	cfg := a.config
	msgs := cfg.Messages

	a.router.Register(plugins.NewCreateClan(a.client, channels.NewExecutor(a.client), a.client, a.relay, msgs,
		plugins.CreateClanConfig{
			Allowed:         cfg.Plugins.CreateClan.Allowed,
			TemplateGroupID: cfg.Plugins.CreateClan.TemplateGroupID,
			SortIDStart:     cfg.Plugins.CreateClan.SortIDStart,
			SortIDInc:       cfg.Plugins.CreateClan.SortIDInc,
			MaxAge:          cfg.Plugins.CreateClan.SessionMaxAge.Std(),
		}))

	a.router.Register(plugins.NewJoinMe(a.client, a.client, msgs, plugins.JoinMeConfig{
		Allowed: cfg.Plugins.JoinMe.Allowed,
		MaxAge:  cfg.Plugins.JoinMe.SessionMaxAge.Std(),
	}))

	if cfg.Plugins.PurgeVerified.GroupID != 0 {
		purge, err := plugins.NewPurgeVerified(a.client, a.client, a.relay, msgs, plugins.PurgeVerifiedConfig{
			Allowed:      cfg.Plugins.PurgeVerified.Allowed,
			GroupID:      cfg.Plugins.PurgeVerified.GroupID,
			DatabaseFile: cfg.Plugins.PurgeVerified.DatabaseFile,
		})
		if err != nil {
			return fmt.Errorf("purgeverified plugin: %w", err)
		}
		a.router.Register(purge)
	}

	if cfg.CSGOEnabled() {
		source := steam.NewSource(steam.NewClient(steam.Config{
			BaseURL: cfg.Plugins.CSGO.Steam.BaseURL,
			APIKey:  cfg.Plugins.CSGO.Steam.APIKey,
		}))
		csgo, err := plugins.NewCSGO(a.client, a.db, source, a.client, a.client, plugins.CSGOConfig{
			Allowed:       cfg.Plugins.CSGO.Allowed,
			RankGroups:    cfg.Plugins.CSGO.RankGroupIDs,
			RankNames:     cfg.Plugins.CSGO.RankNames,
			SweepInterval: cfg.Plugins.CSGO.SweepInterval.Std(),
			BotProfileURL: cfg.Plugins.CSGO.BotProfileURL,
		})
		if err != nil {
			return fmt.Errorf("csgo plugin: %w", err)
		}
		a.router.Register(csgo)
	}

	if cfg.LOLEnabled() {
		client := riot.NewClient(riot.Config{
			APIKey:    cfg.Plugins.LOL.Riot.APIKey,
			APIDomain: cfg.Plugins.LOL.Riot.Domain,
		})
		lol, err := plugins.NewLOL(a.client, a.db, client, a.client, a.client, plugins.LOLConfig{
			Allowed:       cfg.Plugins.LOL.Allowed,
			RankGroups:    cfg.Plugins.LOL.RankGroupIDs,
			SweepInterval: cfg.Plugins.LOL.SweepInterval.Std(),
		})
		if err != nil {
			return fmt.Errorf("lol plugin: %w", err)
		}
		a.router.Register(lol)
	}

	// Registered last so its entries cover every other plugin.
	a.router.Register(plugins.NewHelp(a.client, a.router.Entries))

	return nil
}

// Run pumps messages and background workers until an interrupt arrives or
// the ServerQuery connection drops.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, w := range a.router.Workers() {
		go w.Run(ctx)
	}

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- a.client.Start(ctx, a.handleMessage)
	}()

	a.relay.Post(ctx, "Jarvis is online.")
	slog.Info("jarvis is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("shutting down")
		return nil
	case err := <-pumpErr:
		return fmt.Errorf("message pump stopped: %w", err)
	}
}

// handleMessage routes one inbound private message. Each message gets its
// own trace id so log lines and relay notices line up.
func (a *App) handleMessage(ctx context.Context, msg *commands.Message) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	if err := a.router.Dispatch(ctx, msg); err != nil {
		slog.Error("dispatch failed",
			"uid", msg.Caller.UID,
			"command", msg.Command(),
			"trace", trace.FromContext(ctx),
			"err", err,
		)
	}
}

// Stop closes the ServerQuery session and the database.
func (a *App) Stop() {
	slog.Info("closing serverquery session")
	a.client.Close()

	slog.Info("closing database")
	a.db.Close()
}
