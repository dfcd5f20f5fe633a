// Package ts connects the bot to a TeamSpeak server over the ServerQuery
// protocol. It carries the notification pump for inbound private messages
// and implements the channel, group, directory and notifier contracts the
// rest of the bot consumes.
package ts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	ts3 "github.com/multiplay/go-ts3"

	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
)

// Config holds the ServerQuery connection settings.
type Config struct {
	// Addr is the query endpoint, host:port.
	Addr     string
	Username string
	Password string
	// ServerID selects the virtual server. Defaults to 1.
	ServerID int
	// Nickname is the bot's visible name.
	Nickname string
	// Timeout bounds individual query commands. Defaults to 10s.
	Timeout time.Duration
	// KeepAlive is the idle keep-alive interval. Defaults to 3m.
	KeepAlive time.Duration
}

// Client is an authenticated ServerQuery session.
type Client struct {
	conn *ts3.Client

	// clientID is the bot's own session id, used to drop echoes of the
	// bot's outbound messages from the notification stream.
	clientID int
}

// Handler consumes one inbound private message.
type Handler func(ctx context.Context, msg *commands.Message)

// Connect dials the query port, authenticates, selects the virtual server
// and registers for private text notifications.
func Connect(cfg Config) (*Client, error) {
	if cfg.ServerID == 0 {
		cfg.ServerID = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 3 * time.Minute
	}

	conn, err := ts3.NewClient(cfg.Addr,
		ts3.Timeout(cfg.Timeout),
		ts3.KeepAlive(cfg.KeepAlive),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}

	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("serverquery login: %w", err)
	}
	if err := conn.Use(cfg.ServerID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("use virtual server %d: %w", cfg.ServerID, err)
	}

	c := &Client{conn: conn}

	if cfg.Nickname != "" {
		if _, err := c.exec("clientupdate client_nickname=" + Escape(cfg.Nickname)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set nickname: %w", err)
		}
	}

	lines, err := c.exec("whoami")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("whoami: %w", err)
	}
	self := parseLine(lines[0])
	c.clientID, err = strconv.Atoi(self["client_id"])
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("whoami client_id %q: %w", self["client_id"], err)
	}

	if _, err := c.exec("servernotifyregister event=textprivate"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register text notifications: %w", err)
	}

	slog.Info("serverquery connected", "addr", cfg.Addr, "server", cfg.ServerID, "clid", c.clientID)
	return c, nil
}

// Close terminates the query session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Start pumps inbound private messages into the handler. Blocks until ctx
// is cancelled or the notification channel closes.
func (c *Client) Start(ctx context.Context, handler Handler) error {
	notifications := c.conn.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return fmt.Errorf("notification stream closed")
			}
			if n.Type != "textmessage" {
				continue
			}
			c.handleText(ctx, n.Data, handler)
		}
	}
}

func (c *Client) handleText(ctx context.Context, data map[string]string, handler Handler) {
	// targetmode 1 is a private message; channel and server chatter is
	// ignored entirely.
	if data["targetmode"] != "1" {
		return
	}
	invoker, err := strconv.Atoi(data["invokerid"])
	if err != nil || invoker == c.clientID {
		return
	}

	caller, err := c.ResolveClient(ctx, invoker)
	if err != nil {
		slog.Warn("resolve message sender", "clid", invoker, "err", err)
		return
	}

	handler(ctx, &commands.Message{Caller: caller, Text: data["msg"]})
}

// exec runs one raw query command.
func (c *Client) exec(cmd string) ([]string, error) {
	lines, err := c.conn.Exec(cmd)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []string{""}, nil
	}
	return lines, nil
}

// ResolveClient loads the caller context for a connected client.
func (c *Client) ResolveClient(ctx context.Context, clientID int) (*commands.Caller, error) {
	lines, err := c.exec(fmt.Sprintf("clientinfo clid=%d", clientID))
	if err != nil {
		return nil, fmt.Errorf("clientinfo clid=%d: %w", clientID, err)
	}
	info := parseLine(lines[0])

	dbID, err := strconv.Atoi(info["client_database_id"])
	if err != nil {
		return nil, fmt.Errorf("client_database_id %q: %w", info["client_database_id"], err)
	}
	channelID, _ := strconv.Atoi(info["cid"])

	return &commands.Caller{
		ClientID:   clientID,
		DatabaseID: dbID,
		UID:        info["client_unique_identifier"],
		Nickname:   info["client_nickname"],
		ChannelID:  channelID,
		Groups:     parseGroupList(info["client_servergroups"]),
	}, nil
}

func parseGroupList(s string) []int {
	if s == "" {
		return nil
	}
	var groups []int
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.Atoi(part); err == nil {
			groups = append(groups, id)
		}
	}
	return groups
}
