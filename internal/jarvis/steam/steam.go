// Package steam resolves CSGO competitive ranks for Steam accounts through
// a rank lookup service.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Forge-Media/teamspeak-bot/common/retry"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/rank"
)

const defaultTimeout = 15 * time.Second

// ErrUnknownAccount is returned when the lookup service has never seen the
// account.
var ErrUnknownAccount = errors.New("unknown steam account")

// ValidSteam64 reports whether s looks like a 64-bit SteamID: exactly 17
// digits.
func ValidSteam64(s string) bool {
	if len(s) != 17 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Config configures the rank lookup client.
type Config struct {
	// BaseURL is the rank lookup service endpoint.
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout is the HTTP request timeout. Defaults to 15s.
	Timeout time.Duration
}

// Client queries the rank lookup service. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type rankResponse struct {
	RankID   int    `json:"rank_id"`
	RankName string `json:"rank_name"`
}

// PlayerRank returns the account's competitive rank ordinal. Rank 0 means
// the account is currently unranked.
func (c *Client) PlayerRank(ctx context.Context, steam64 string) (rank.Rank, error) {
	if !ValidSteam64(steam64) {
		return rank.Unranked, fmt.Errorf("invalid steam64 id %q", steam64)
	}

	endpoint := fmt.Sprintf("%s/v1/rank?steamid=%s", c.cfg.BaseURL, url.QueryEscape(steam64))

	var out rankResponse
	cfg := retry.DefaultConfig
	cfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrUnknownAccount)
	}
	err := retry.Do(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrUnknownAccount
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("rank lookup status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return rank.Unranked, err
	}

	if out.RankID < 0 {
		return rank.Unranked, fmt.Errorf("rank lookup returned %d", out.RankID)
	}
	return rank.Rank(out.RankID), nil
}

// Source adapts the client to the rank sweep contract. The registration's
// external id is the steam64 id.
type Source struct {
	client *Client
}

// NewSource returns a rank source backed by the client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Rank fetches the current competitive rank for one registration.
func (s *Source) Rank(ctx context.Context, reg rank.Registration) (rank.Rank, error) {
	return s.client.PlayerRank(ctx, reg.ExternalID)
}
