// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required Discord credentials and IDs, use ValidateDiscordReady.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Discord
	DiscordToken string

	// VC lifecycle
	VCCategoryID      string
	VCIgnoredChannels []string
	ThreadChannelID   string

	// Stale-binding sweeper (0 disables)
	SweepInterval time.Duration

	// Database (empty disables session history)
	DBDsn string

	// Ops HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if Discord creds are
// missing; use ValidateDiscordReady() when you require the gateway connection. An empty DB_DSN
// disables session history rather than erroring.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.VCCategoryID = os.Getenv("VC_CATEGORY_ID")
	cfg.ThreadChannelID = os.Getenv("THREAD_CHANNEL_ID")

	if v := os.Getenv("VC_IGNORED_CHANNELS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.VCIgnoredChannels = append(cfg.VCIgnoredChannels, id)
			}
		}
	}

	cfg.SweepInterval = 10 * time.Minute
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if v == "0" || strings.EqualFold(v, "off") {
			cfg.SweepInterval = 0
		} else {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid SWEEP_INTERVAL (duration): %w", err)
			}
			cfg.SweepInterval = d
		}
	}

	// DB (optional)
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateDiscordReady checks required fields for connecting the bot to a guild.
func (c *Config) ValidateDiscordReady() error {
	if c.DiscordToken == "" || c.VCCategoryID == "" || c.ThreadChannelID == "" {
		return fmt.Errorf("missing discord env: require DISCORD_TOKEN, VC_CATEGORY_ID, THREAD_CHANNEL_ID")
	}
	return nil
}

// IsIgnoredChannel reports whether the channel id is excluded from lifecycle management.
func (c *Config) IsIgnoredChannel(channelID string) bool {
	for _, id := range c.VCIgnoredChannels {
		if id == channelID {
			return true
		}
	}
	return false
}
