// Package config loads go-temitour configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key (TOURBOT_BRIDGE_URL, ...).
const EnvPrefix = "TOURBOT"

// Config holds all runtime configuration for the tour service.
type Config struct {
	Log struct {
		Level string
	}

	// Bridge is the WebSocket endpoint of the Android app relaying the robot SDK.
	Bridge struct {
		URL            string
		ReconnectDelay time.Duration
	}

	Web struct {
		Port    string
		Enabled bool
	}

	OpenAI struct {
		APIKey       string
		BaseURL      string
		Model        string
		Timeout      time.Duration
		ReplyTimeout time.Duration
	}

	Tour struct {
		ScriptPath        string
		Sequence          []string
		Speed             string
		InterruptDelay    time.Duration
		NavigationMaxWait time.Duration // 0 waits forever
		ValidateLocations bool
	}

	Perception struct {
		Interval   time.Duration
		StaleAfter time.Duration // 0 disables staleness checks
	}

	Journal struct {
		Path string // empty disables the journal
	}
}

// Load builds a Config from defaults and environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")

	v.SetDefault("bridge.url", "ws://127.0.0.1:8765/bridge")
	v.SetDefault("bridge.reconnect_delay", 2*time.Second)

	v.SetDefault("web.port", "8080")
	v.SetDefault("web.enabled", true)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.reply_timeout", 60*time.Second)

	v.SetDefault("tour.script", "")
	v.SetDefault("tour.sequence", "")
	v.SetDefault("tour.speed", "high")
	v.SetDefault("tour.interrupt_delay", 10*time.Second)
	v.SetDefault("tour.navigation_max_wait", time.Duration(0))
	v.SetDefault("tour.validate_locations", true)

	v.SetDefault("perception.interval", 500*time.Millisecond)
	v.SetDefault("perception.stale_after", time.Duration(0))

	v.SetDefault("journal.path", "data/tours.db")

	// Unprefixed keys shared with other tools
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY", EnvPrefix+"_OPENAI_API_KEY")
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	var c Config
	c.Log.Level = v.GetString("log.level")

	c.Bridge.URL = v.GetString("bridge.url")
	c.Bridge.ReconnectDelay = v.GetDuration("bridge.reconnect_delay")

	c.Web.Port = fmt.Sprint(v.Get("web.port"))
	c.Web.Enabled = v.GetBool("web.enabled")

	c.OpenAI.APIKey = v.GetString("openai.api_key")
	c.OpenAI.BaseURL = v.GetString("openai.base_url")
	c.OpenAI.Model = v.GetString("openai.model")
	c.OpenAI.Timeout = v.GetDuration("openai.timeout")
	c.OpenAI.ReplyTimeout = v.GetDuration("openai.reply_timeout")

	c.Tour.ScriptPath = v.GetString("tour.script")
	c.Tour.Sequence = splitList(v.GetString("tour.sequence"))
	c.Tour.Speed = v.GetString("tour.speed")
	c.Tour.InterruptDelay = v.GetDuration("tour.interrupt_delay")
	c.Tour.NavigationMaxWait = v.GetDuration("tour.navigation_max_wait")
	c.Tour.ValidateLocations = v.GetBool("tour.validate_locations")

	c.Perception.Interval = v.GetDuration("perception.interval")
	c.Perception.StaleAfter = v.GetDuration("perception.stale_after")

	c.Journal.Path = v.GetString("journal.path")

	return c, c.Validate()
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Bridge.URL == "" {
		return &ConfigError{Field: "Bridge.URL", Message: "TOURBOT_BRIDGE_URL must not be empty"}
	}
	if !strings.HasPrefix(c.Bridge.URL, "ws://") && !strings.HasPrefix(c.Bridge.URL, "wss://") {
		return &ConfigError{Field: "Bridge.URL", Message: fmt.Sprintf("bridge url %q must use ws:// or wss://", c.Bridge.URL)}
	}
	if c.Perception.Interval <= 0 {
		return &ConfigError{Field: "Perception.Interval", Message: "perception interval must be positive"}
	}
	if c.Tour.InterruptDelay < 0 {
		return &ConfigError{Field: "Tour.InterruptDelay", Message: "interrupt delay must not be negative"}
	}
	switch c.Tour.Speed {
	case "high", "medium", "slow":
	default:
		return &ConfigError{Field: "Tour.Speed", Message: fmt.Sprintf("unknown speed %q (want high, medium or slow)", c.Tour.Speed)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Message
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
