package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/relay"
)

// verifiedSchema validates the verified-users document before a purge is
// allowed to act on it. A malformed document must never empty the group.
const verifiedSchema = `{
	"type": "object",
	"required": ["users"],
	"properties": {
		"users": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["teamspeakid"],
				"properties": {
					"teamspeakid": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// GroupPurger is the server surface the purge needs.
type GroupPurger interface {
	GroupMembers(ctx context.Context, groupID int) ([]commands.Caller, error)
	DelGroups(ctx context.Context, databaseID int, groups []int) error
}

// PurgeVerifiedConfig configures the verified-group purge.
type PurgeVerifiedConfig struct {
	Allowed []int
	// GroupID is the server group to purge.
	GroupID int
	// DatabaseFile is the verified-users JSON document.
	DatabaseFile string
}

// PurgeVerified removes members of the verified server group that are
// absent from the external verified-users document.
type PurgeVerified struct {
	notifier commands.Notifier
	groups   GroupPurger
	relay    relay.Relay
	schema   *jsonschema.Schema
	msgs     commands.Messages
	cfg      PurgeVerifiedConfig
}

type verifiedDocument struct {
	Users []struct {
		TeamspeakID string `json:"teamspeakid"`
	} `json:"users"`
}

// NewPurgeVerified creates the purge plugin.
func NewPurgeVerified(notifier commands.Notifier, groups GroupPurger, rly relay.Relay, msgs commands.Messages, cfg PurgeVerifiedConfig) (*PurgeVerified, error) {
	schema, err := jsonschema.CompileString("verified.schema.json", verifiedSchema)
	if err != nil {
		return nil, fmt.Errorf("compile verified schema: %w", err)
	}
	if rly == nil {
		rly = relay.Noop{}
	}
	return &PurgeVerified{
		notifier: notifier,
		groups:   groups,
		relay:    rly,
		schema:   schema,
		msgs:     msgs,
		cfg:      cfg,
	}, nil
}

func (p *PurgeVerified) Name() string { return "purgeverified" }

func (p *PurgeVerified) Help() []commands.HelpEntry {
	return []commands.HelpEntry{
		{Command: "!purgeVerified", Description: "Remove invalid users in the Verified Server Group"},
	}
}

func (p *PurgeVerified) Commands() []string { return []string{"!purgeverified"} }

func (p *PurgeVerified) Allowed() []int { return p.cfg.Allowed }

func (p *PurgeVerified) OnMessage(ctx context.Context, msg *commands.Message) error {
	doc, err := p.loadDocument()
	if err != nil {
		p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.Internal+err.Error())
		return err
	}

	members, err := p.groups.GroupMembers(ctx, p.cfg.GroupID)
	if err != nil {
		p.notifier.Send(ctx, msg.Caller.ClientID, p.msgs.External+err.Error())
		return fmt.Errorf("list verified group: %w", err)
	}

	p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf(
		"[b]Purge Started on Server Group: (%d)[/b] \n This may take a while!", p.cfg.GroupID))

	verified := make(map[string]struct{}, len(doc.Users))
	for _, u := range doc.Users {
		verified[u.TeamspeakID] = struct{}{}
	}

	purged := 0
	for _, member := range members {
		if _, ok := verified[member.UID]; ok {
			continue
		}
		slog.Info("purging unverified member", "nickname", member.Nickname, "uid", member.UID)
		if err := p.groups.DelGroups(ctx, member.DatabaseID, []int{p.cfg.GroupID}); err != nil {
			// One stubborn member must not stop the sweep.
			slog.Error("remove from verified group", "nickname", member.Nickname, "err", err)
			continue
		}
		purged++
	}

	p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf("%d total verified users on TeamSpeak!", len(members)))
	p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf("%d total verified users in database!", len(doc.Users)))
	if purged > 0 {
		p.notifier.Send(ctx, msg.Caller.ClientID, fmt.Sprintf("[b]FINISHED[/b]: %d users purged from server group!", purged))
	} else {
		p.notifier.Send(ctx, msg.Caller.ClientID, "[b]FINISHED[/b]: No invalid users found!")
	}

	p.relay.Post(ctx, fmt.Sprintf("verified purge by %s: %d of %d members removed",
		msg.Caller.Nickname, purged, len(members)))
	return nil
}

// loadDocument reads and schema-checks the verified-users file.
func (p *PurgeVerified) loadDocument() (*verifiedDocument, error) {
	raw, err := os.ReadFile(p.cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("verified database file missing: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("verified database file malformed: %w", err)
	}
	if err := p.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("verified database file invalid: %w", err)
	}

	var doc verifiedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("verified database file malformed: %w", err)
	}
	return &doc, nil
}
