// Package riot is a thin client for the Riot Games League API, covering
// summoner lookup and ranked league entries.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Forge-Media/teamspeak-bot/common/retry"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/rank"
)

const (
	defaultAPIDomain = "api.riotgames.com"
	defaultTimeout   = 15 * time.Second
)

// Ranked queue identifiers as the league API reports them.
const (
	QueueSolo = "RANKED_SOLO_5x5"
	QueueFlex = "RANKED_FLEX_SR"
)

// regions the API accepts, after normalization.
var regions = []string{"BR1", "EUN1", "EUW1", "JP1", "KR", "LA1", "LA2", "NA1", "OC1", "RU", "TR1"}

// Tiers in ascending order. The ordinal of a tier (1-based) indexes the
// badge group table.
var Tiers = []string{"IRON", "BRONZE", "SILVER", "GOLD", "PLATINUM", "DIAMOND", "MASTER", "GRANDMASTER", "CHALLENGER"}

// ErrSummonerNotFound is returned when no summoner matches the name.
var ErrSummonerNotFound = errors.New("summoner not found")

// NormalizeRegion validates a user-entered region like "EUW" or "kr" and
// returns the platform id the API expects. Most platforms carry a numeric
// suffix; KR and RU do not.
func NormalizeRegion(input string) (string, error) {
	region := strings.ToUpper(strings.TrimSpace(input))
	if len(region) < 2 || len(region) > 3 {
		return "", fmt.Errorf("invalid region %q", input)
	}
	if region != "KR" && region != "RU" {
		region += "1"
	}
	for _, r := range regions {
		if r == region {
			return region, nil
		}
	}
	return "", fmt.Errorf("invalid region %q", input)
}

// NormalizeQueue maps the user-entered queue type (Solo or Flex) to the
// API's queue identifier.
func NormalizeQueue(input string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "SOLO":
		return QueueSolo, nil
	case "FLEX":
		return QueueFlex, nil
	default:
		return "", fmt.Errorf("invalid queue type %q, expected Solo or Flex", input)
	}
}

// TierOrdinal maps a league tier name to its 1-based rank ordinal.
func TierOrdinal(tier string) (rank.Rank, bool) {
	tier = strings.ToUpper(tier)
	for i, t := range Tiers {
		if t == tier {
			return rank.Rank(i + 1), true
		}
	}
	return rank.Unranked, false
}

// Config configures the Riot API client.
type Config struct {
	// APIKey is sent as the X-Riot-Token header.
	APIKey string
	// APIDomain overrides the API host suffix. Defaults to api.riotgames.com.
	APIDomain string
	// Timeout is the HTTP request timeout. Defaults to 15s.
	Timeout time.Duration
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// Client talks to the Riot League API. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.APIDomain == "" {
		cfg.APIDomain = defaultAPIDomain
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client}
}

// Summoner is the subset of the summoner endpoint the bot uses.
type Summoner struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Level     int    `json:"summonerLevel"`
}

// LeagueEntry is one ranked queue standing for a summoner.
type LeagueEntry struct {
	QueueType string `json:"queueType"`
	Tier      string `json:"tier"`
	Rank      string `json:"rank"`
}

// SummonerByName looks up a summoner on the given platform region.
func (c *Client) SummonerByName(ctx context.Context, region, name string) (*Summoner, error) {
	// The API treats names case-insensitively and ignores spaces.
	formatted := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "")
	endpoint := fmt.Sprintf("https://%s.%s/lol/summoner/v4/summoners/by-name/%s",
		strings.ToLower(region), c.cfg.APIDomain, url.PathEscape(formatted))

	var summoner Summoner
	if err := c.get(ctx, endpoint, &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}

// Leagues returns every ranked queue standing for a summoner. An unranked
// summoner yields an empty list.
func (c *Client) Leagues(ctx context.Context, region, summonerID string) ([]LeagueEntry, error) {
	endpoint := fmt.Sprintf("https://%s.%s/lol/league/v4/entries/by-summoner/%s",
		strings.ToLower(region), c.cfg.APIDomain, url.PathEscape(summonerID))

	var entries []LeagueEntry
	if err := c.get(ctx, endpoint, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	cfg := retry.DefaultConfig
	// A missing summoner is a definitive answer, not a transient failure.
	cfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrSummonerNotFound)
	}
	return retry.Do(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Riot-Token", c.cfg.APIKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrSummonerNotFound
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("riot api status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// Source adapts the client to the rank sweep contract. The registration's
// external id is the encrypted summoner id; region and queue select the
// platform and the ranked queue to read.
type Source struct {
	client *Client
}

// NewSource returns a rank source backed by the client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Rank fetches the current tier for one registration. A summoner with no
// standing in the registered queue is Unranked.
func (s *Source) Rank(ctx context.Context, reg rank.Registration) (rank.Rank, error) {
	entries, err := s.client.Leagues(ctx, reg.Region, reg.ExternalID)
	if err != nil {
		return rank.Unranked, fmt.Errorf("league entries for %s: %w", reg.ExternalID, err)
	}

	for _, entry := range entries {
		if entry.QueueType != reg.Queue {
			continue
		}
		if ordinal, ok := TierOrdinal(entry.Tier); ok {
			return ordinal, nil
		}
		return rank.Unranked, fmt.Errorf("unknown tier %q", entry.Tier)
	}
	return rank.Unranked, nil
}
