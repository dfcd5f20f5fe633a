// Package commands provides command parsing, the plugin registry, and routing
// of inbound private messages for Jarvis.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Prefix is the character that marks the first token of a message as a command.
const Prefix = "!"

// Caller identifies the TeamSpeak client behind an inbound message. The same
// shape is used for any client the bot resolves through the directory (move
// targets, sweep subjects), not only command invokers.
type Caller struct {
	// ClientID is the volatile per-connection id (clid).
	ClientID int
	// DatabaseID is the stable server-side id (cldbid) used by group operations.
	DatabaseID int
	// UID is the client's unique identifier, stable across connections.
	UID string
	// Nickname is the client's current display name.
	Nickname string
	// ChannelID is the channel the client currently sits in.
	ChannelID int
	// Groups holds the server group ids the client is a member of.
	Groups []int
}

// Message is one inbound private text message.
type Message struct {
	Caller *Caller
	// Text is the raw message body, surrounding whitespace trimmed.
	Text string
}

// Command returns the lower-cased first token of the message.
func (m *Message) Command() string {
	fields := strings.Fields(m.Text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Notifier sends a private text back to a client.
type Notifier interface {
	Send(ctx context.Context, clientID int, text string) error
}

// HelpEntry is one command/description pair shown by !help.
type HelpEntry struct {
	Command     string
	Description string
}

// Plugin is the capability interface every command handler implements.
// Plugins are registered once at startup; there is no dynamic loading.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string
	// Help returns the command/description pairs the plugin contributes.
	Help() []HelpEntry
	// Commands returns the lower-cased keywords (including the prefix)
	// this plugin owns, e.g. "!createclan".
	Commands() []string
	// Allowed returns the server group ids permitted to invoke the plugin's
	// commands. An empty list means no restriction.
	Allowed() []int
	// OnMessage handles a message routed to this plugin.
	OnMessage(ctx context.Context, msg *Message) error
}

// SessionAware is implemented by plugins that hold per-user conversational
// sessions. The router consults it to decide whether a message is wizard
// input rather than a fresh command.
type SessionAware interface {
	HasSession(uid string) bool
}

// Worker is implemented by plugins that need a recurring background task
// (session reaping, rank sweeps). Run blocks until ctx is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// Router dispatches inbound messages to registered plugins.
type Router struct {
	notifier  Notifier
	forbidden string
	plugins   []Plugin
	byCommand map[string]Plugin
}

// NewRouter creates a Router. forbidden is the reply sent when the allow-list
// gate rejects a caller.
func NewRouter(notifier Notifier, forbidden string) *Router {
	return &Router{
		notifier:  notifier,
		forbidden: forbidden,
		byCommand: make(map[string]Plugin),
	}
}

// Register adds a plugin and binds its command keywords. Registering two
// plugins for the same keyword is a programming error and panics at startup.
func (r *Router) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	for _, cmd := range p.Commands() {
		key := strings.ToLower(cmd)
		if prev, ok := r.byCommand[key]; ok {
			panic(fmt.Sprintf("commands: %q registered by both %s and %s", key, prev.Name(), p.Name()))
		}
		r.byCommand[key] = p
	}
	slog.Info("plugin registered", "plugin", p.Name(), "commands", p.Commands())
}

// Workers returns the registered plugins that carry a background task.
func (r *Router) Workers() []Worker {
	var workers []Worker
	for _, p := range r.plugins {
		if w, ok := p.(Worker); ok {
			workers = append(workers, w)
		}
	}
	return workers
}

// Entries returns the help entries of all registered plugins, sorted by
// command keyword.
func (r *Router) Entries() []HelpEntry {
	var entries []HelpEntry
	for _, p := range r.plugins {
		entries = append(entries, p.Help()...)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Command) < strings.ToLower(entries[j].Command)
	})
	return entries
}

// Dispatch routes one inbound message.
//
// A caller with an active session owns the conversation: the message goes to
// every plugin holding a session for them, before any command lookup. This is
// what turns a command typed mid-wizard into wizard input instead of a session
// overwrite. Otherwise the first token is matched against the registry; the
// allow-list gate runs before the handler, and unregistered prefix text is
// ignored without error.
func (r *Router) Dispatch(ctx context.Context, msg *Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	msg.Text = text

	var owners []Plugin
	for _, p := range r.plugins {
		if sa, ok := p.(SessionAware); ok && sa.HasSession(msg.Caller.UID) {
			owners = append(owners, p)
		}
	}
	if len(owners) > 0 {
		for _, p := range owners {
			if err := p.OnMessage(ctx, msg); err != nil {
				slog.Error("session input failed", "plugin", p.Name(), "uid", msg.Caller.UID, "err", err)
			}
		}
		return nil
	}

	name := msg.Command()
	p, ok := r.byCommand[name]
	if !ok {
		// Neither a registered command nor session input; ordinary chatter.
		return nil
	}

	if !groupsIntersect(msg.Caller.Groups, p.Allowed()) {
		return r.notifier.Send(ctx, msg.Caller.ClientID, r.forbidden)
	}

	if err := p.OnMessage(ctx, msg); err != nil {
		return fmt.Errorf("plugin %s: %w", p.Name(), err)
	}
	return nil
}

// groupsIntersect reports whether the caller holds at least one of the
// allowed groups. An empty allow-list grants access.
func groupsIntersect(have, allowed []int) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		for _, h := range have {
			if a == h {
				return true
			}
		}
	}
	return false
}

// SplitArgs splits a raw message into its command token and arguments.
// Arguments may be written TeamSpeak-style in angle brackets
// ("!joinme <Alice> <Bob>", preserving spaces inside a name) or bare
// ("!registercsgo 76561198000000000").
func SplitArgs(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if i := strings.Index(text, " <"); i >= 0 {
		cmd := strings.ToLower(text[:i])
		var args []string
		for _, part := range strings.Split(text[i+2:], " <") {
			part = strings.TrimSuffix(strings.TrimSpace(part), ">")
			if part != "" {
				args = append(args, part)
			}
		}
		return cmd, args
	}

	fields := strings.Fields(text)
	if len(fields) == 1 {
		return strings.ToLower(fields[0]), nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
