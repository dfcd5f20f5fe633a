// Package config loads the bot's YAML configuration file and applies
// environment overrides for the credentials that should never live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Forge-Media/teamspeak-bot/common/environment"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/commands"
)

// Duration wraps time.Duration so intervals can be written as "30s" or "2h"
// in the YAML file.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerQuery holds the TeamSpeak ServerQuery connection settings.
type ServerQuery struct {
	// Addr is the host:port of the ServerQuery raw interface, e.g.
	// "ts.example.com:10011".
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// ServerID is the virtual server to select. Defaults to 1.
	ServerID int    `yaml:"server_id"`
	Nickname string `yaml:"nickname"`
}

// Relay holds the optional Matrix ops-room relay settings. The relay is
// disabled when RoomID is empty.
type Relay struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
	RoomID      string `yaml:"room_id"`
}

// CreateClan configures the clan channel wizard.
type CreateClan struct {
	Allowed []int `yaml:"allowed_groups"`
	// TemplateGroupID is the server group copied when a clan group is
	// created at the end of the wizard.
	TemplateGroupID int      `yaml:"template_group_id"`
	SortIDStart     int      `yaml:"sort_id_start"`
	SortIDInc       int      `yaml:"sort_id_increment"`
	SessionMaxAge   Duration `yaml:"session_max_age"`
}

// JoinMe configures the channel invitation command.
type JoinMe struct {
	Allowed       []int    `yaml:"allowed_groups"`
	SessionMaxAge Duration `yaml:"session_max_age"`
}

// PurgeVerified configures the verified-group audit command.
type PurgeVerified struct {
	Allowed []int `yaml:"allowed_groups"`
	// GroupID is the server group whose membership is audited.
	GroupID int `yaml:"group_id"`
	// DatabaseFile is the path to the exported JSON document that lists
	// the identities allowed to keep the group.
	DatabaseFile string `yaml:"database_file"`
}

// Steam holds the CSGO rank lookup service settings.
type Steam struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// CSGO configures Steam account registration and rank badges.
type CSGO struct {
	Allowed []int `yaml:"allowed_groups"`
	// RankGroupIDs lists the 18 badge server groups, Silver I first.
	RankGroupIDs  []int    `yaml:"rank_group_ids"`
	RankNames     []string `yaml:"rank_names"`
	SweepInterval Duration `yaml:"sweep_interval"`
	// BotProfileURL is the Steam profile users must friend so the lookup
	// service can see their rank.
	BotProfileURL string `yaml:"bot_profile_url"`
	Steam         Steam  `yaml:"steam"`
}

// Riot holds the Riot Games API settings.
type Riot struct {
	APIKey string `yaml:"api_key"`
	// Domain overrides the API domain. Defaults to api.riotgames.com.
	Domain string `yaml:"domain"`
}

// LOL configures League of Legends summoner registration and rank badges.
type LOL struct {
	Allowed []int `yaml:"allowed_groups"`
	// RankGroupIDs lists the badge server groups in tier order, Iron first.
	RankGroupIDs  []int    `yaml:"rank_group_ids"`
	SweepInterval Duration `yaml:"sweep_interval"`
	Riot          Riot     `yaml:"riot"`
}

// Plugins groups the per-plugin sections. A plugin with a zero-value section
// runs with open access and defaults; CSGO and LOL are disabled when their
// rank group lists are empty.
type Plugins struct {
	CreateClan    CreateClan    `yaml:"createclan"`
	JoinMe        JoinMe        `yaml:"joinme"`
	PurgeVerified PurgeVerified `yaml:"purgeverified"`
	CSGO          CSGO          `yaml:"csgo"`
	LOL           LOL           `yaml:"lol"`
}

// Config is the full bot configuration.
type Config struct {
	ServerQuery ServerQuery       `yaml:"serverquery"`
	Database    string            `yaml:"database"`
	Relay       Relay             `yaml:"relay"`
	Messages    commands.Messages `yaml:"messages"`
	Plugins     Plugins           `yaml:"plugins"`
}

// CSGO requires one badge group per competitive rank.
const csgoRankCount = 18

// LOL requires one badge group per league tier.
const lolTierCount = 9

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a raw YAML payload into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Messages: commands.DefaultMessages()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides credentials from the environment. Secrets in the YAML
// file are supported for development setups but the environment wins.
func (c *Config) applyEnv() {
	c.ServerQuery.Password = environment.StringOr("JARVIS_QUERY_PASSWORD", c.ServerQuery.Password)
	c.Relay.AccessToken = environment.StringOr("JARVIS_MATRIX_TOKEN", c.Relay.AccessToken)
	c.Plugins.CSGO.Steam.APIKey = environment.StringOr("JARVIS_STEAM_API_KEY", c.Plugins.CSGO.Steam.APIKey)
	c.Plugins.LOL.Riot.APIKey = environment.StringOr("JARVIS_RIOT_API_KEY", c.Plugins.LOL.Riot.APIKey)
}

func (c *Config) applyDefaults() {
	if c.ServerQuery.ServerID == 0 {
		c.ServerQuery.ServerID = 1
	}
	if c.ServerQuery.Nickname == "" {
		c.ServerQuery.Nickname = "Jarvis"
	}
	if c.Database == "" {
		c.Database = "./jarvis.db"
	}
	if c.Plugins.CreateClan.SortIDStart == 0 {
		c.Plugins.CreateClan.SortIDStart = 901
	}
	if c.Plugins.CreateClan.SortIDInc == 0 {
		c.Plugins.CreateClan.SortIDInc = 100
	}
}

// Validate rejects configurations that would misbehave at runtime rather
// than fail at startup.
func (c *Config) Validate() error {
	if c.ServerQuery.Addr == "" {
		return fmt.Errorf("serverquery.addr is required")
	}
	if c.ServerQuery.Username == "" || c.ServerQuery.Password == "" {
		return fmt.Errorf("serverquery credentials are required")
	}

	if c.Relay.RoomID != "" {
		if c.Relay.Homeserver == "" || c.Relay.UserID == "" || c.Relay.AccessToken == "" {
			return fmt.Errorf("relay.room_id is set but homeserver, user_id or access_token is missing")
		}
	}

	if n := len(c.Plugins.CSGO.RankGroupIDs); n != 0 {
		if n != csgoRankCount {
			return fmt.Errorf("csgo.rank_group_ids must list %d groups, got %d", csgoRankCount, n)
		}
		if len(c.Plugins.CSGO.RankNames) != csgoRankCount {
			return fmt.Errorf("csgo.rank_names must list %d names, got %d", csgoRankCount, len(c.Plugins.CSGO.RankNames))
		}
		if c.Plugins.CSGO.Steam.BaseURL == "" {
			return fmt.Errorf("csgo.steam.base_url is required when csgo ranks are configured")
		}
	}

	if n := len(c.Plugins.LOL.RankGroupIDs); n != 0 {
		if n != lolTierCount {
			return fmt.Errorf("lol.rank_group_ids must list %d groups, got %d", lolTierCount, n)
		}
		if c.Plugins.LOL.Riot.APIKey == "" {
			return fmt.Errorf("lol.riot.api_key is required when lol ranks are configured")
		}
	}

	return nil
}

// CSGOEnabled reports whether the CSGO plugin has a full badge table.
func (c *Config) CSGOEnabled() bool { return len(c.Plugins.CSGO.RankGroupIDs) != 0 }

// LOLEnabled reports whether the LOL plugin has a full badge table.
func (c *Config) LOLEnabled() bool { return len(c.Plugins.LOL.RankGroupIDs) != 0 }

// RelayEnabled reports whether the Matrix ops relay is configured.
func (c *Config) RelayEnabled() bool { return c.Relay.RoomID != "" }
