package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerSettings  `hcl:"server,block"`
	Defaults DefaultSettings `hcl:"defaults,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address   string   `hcl:"address,optional"`
	Port      int      `hcl:"port,optional"`
	LogLevel  string   `hcl:"log_level,optional"`
	DBPath    string   `hcl:"db_path,optional"`
	Ephemeral bool     `hcl:"ephemeral,optional"`
	// AdminKeys are API keys allowed to create and end tables. Empty means
	// any registered agent may administer tables (useful for local play).
	AdminKeys []string `hcl:"admin_keys,optional"`
}

// DefaultSettings tune table and session behaviour.
type DefaultSettings struct {
	ActionTimeoutMS  int `hcl:"action_timeout_ms,optional"`
	NextHandDelayMS  int `hcl:"next_hand_delay_ms,optional"`
	GraceTimeoutMS   int `hcl:"grace_timeout_ms,optional"`
	SessionWindowMin int `hcl:"session_window_min,optional"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
			DBPath:   "pokerforagents.db",
		},
		Defaults: DefaultSettings{
			ActionTimeoutMS:  30_000,
			NextHandDelayMS:  2_000,
			GraceTimeoutMS:   60_000,
			SessionWindowMin: 30,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist. Environment variables override the file.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.applyEnv(); err != nil {
			return nil, err
		}
		return config, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	def := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = def.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = def.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = def.Server.LogLevel
	}
	if config.Server.DBPath == "" {
		config.Server.DBPath = def.Server.DBPath
	}
	if config.Defaults.ActionTimeoutMS == 0 {
		config.Defaults.ActionTimeoutMS = def.Defaults.ActionTimeoutMS
	}
	if config.Defaults.NextHandDelayMS == 0 {
		config.Defaults.NextHandDelayMS = def.Defaults.NextHandDelayMS
	}
	if config.Defaults.GraceTimeoutMS == 0 {
		config.Defaults.GraceTimeoutMS = def.Defaults.GraceTimeoutMS
	}
	if config.Defaults.SessionWindowMin == 0 {
		config.Defaults.SessionWindowMin = def.Defaults.SessionWindowMin
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnv overlays POKERFORAGENTS_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("POKERFORAGENTS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("POKERFORAGENTS_ADDR %q: %w", v, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("POKERFORAGENTS_ADDR port %q: %w", port, err)
		}
		c.Server.Address, c.Server.Port = host, p
	}
	if v := os.Getenv("POKERFORAGENTS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("POKERFORAGENTS_DB_PATH"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("POKERFORAGENTS_ADMIN_KEYS"); v != "" {
		c.Server.AdminKeys = strings.Split(v, ",")
	}
	for _, e := range []struct {
		name string
		dst  *int
	}{
		{"POKERFORAGENTS_ACTION_TIMEOUT_MS", &c.Defaults.ActionTimeoutMS},
		{"POKERFORAGENTS_GRACE_TIMEOUT_MS", &c.Defaults.GraceTimeoutMS},
		{"POKERFORAGENTS_NEXT_HAND_DELAY_MS", &c.Defaults.NextHandDelayMS},
		{"POKERFORAGENTS_SESSION_WINDOW_MIN", &c.Defaults.SessionWindowMin},
	} {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s %q: %w", e.name, v, err)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Defaults.ActionTimeoutMS < 100 {
		return fmt.Errorf("action_timeout_ms must be at least 100, got %d", c.Defaults.ActionTimeoutMS)
	}
	if c.Defaults.SessionWindowMin < 1 {
		return fmt.Errorf("session_window_min must be at least 1, got %d", c.Defaults.SessionWindowMin)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// NextHandDelay returns the pause between hands.
func (c *Config) NextHandDelay() time.Duration {
	return time.Duration(c.Defaults.NextHandDelayMS) * time.Millisecond
}

// GraceTimeout returns the disconnect grace before a seat is abandoned.
func (c *Config) GraceTimeout() time.Duration {
	return time.Duration(c.Defaults.GraceTimeoutMS) * time.Millisecond
}

// SessionWindow returns the sliding session expiry window.
func (c *Config) SessionWindow() time.Duration {
	return time.Duration(c.Defaults.SessionWindowMin) * time.Minute
}
