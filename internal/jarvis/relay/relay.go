// Package relay posts operational notices to a Matrix room so admins can
// follow bot activity (wizard runs, purges, rank sweeps) without watching
// the server or the logs.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/Forge-Media/teamspeak-bot/common/trace"
)

// Relay delivers one operational notice. Implementations must not block
// the caller beyond a short timeout; send failures are logged, not
// propagated.
type Relay interface {
	Post(ctx context.Context, text string)
}

// Noop is used when the ops room is not configured.
type Noop struct{}

// Post does nothing.
func (Noop) Post(context.Context, string) {}

// Config holds the Matrix connection settings for the ops room.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// RoomID is the ops room notices are posted to.
	RoomID string
}

// Matrix posts notices to a Matrix room.
type Matrix struct {
	client *mautrix.Client
	roomID id.RoomID
}

// NewMatrix creates a Matrix relay.
func NewMatrix(cfg Config) (*Matrix, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	return &Matrix{client: client, roomID: id.RoomID(cfg.RoomID)}, nil
}

// Post sends the text as a room notice. The run's trace id, when present
// on the context, is appended so a notice can be matched to log lines.
func (m *Matrix) Post(ctx context.Context, text string) {
	if tid := trace.FromContext(ctx); tid != "" {
		text = fmt.Sprintf("%s\n  trace: %s", text, tid)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	}
	if _, err := m.client.SendMessageEvent(ctx, m.roomID, event.EventMessage, &content); err != nil {
		slog.Warn("ops relay: failed to send notice", "room", m.roomID, "err", err)
	}
}
