// Package plugins contains the command handlers the bot registers at
// startup: the channel-build wizard, move requests, the verified-group
// purge, and the game rank registrations.
package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
)

// Help lists every registered command with its description.
type Help struct {
	notifier commands.Notifier
	entries  func() []commands.HelpEntry
}

// NewHelp creates the help plugin. entries is read on every invocation so
// it reflects whatever was registered by startup time.
func NewHelp(notifier commands.Notifier, entries func() []commands.HelpEntry) *Help {
	return &Help{notifier: notifier, entries: entries}
}

func (h *Help) Name() string { return "help" }

func (h *Help) Help() []commands.HelpEntry {
	return []commands.HelpEntry{{Command: "!help", Description: "List all available commands"}}
}

func (h *Help) Commands() []string { return []string{"!help"} }

// Allowed is empty: anyone may ask for help.
func (h *Help) Allowed() []int { return nil }

func (h *Help) OnMessage(ctx context.Context, msg *commands.Message) error {
	var b strings.Builder
	b.WriteString("\n")
	for _, entry := range h.entries() {
		fmt.Fprintf(&b, "[b]%s[/b] - %s\n", entry.Command, entry.Description)
	}
	return h.notifier.Send(ctx, msg.Caller.ClientID, b.String())
}
