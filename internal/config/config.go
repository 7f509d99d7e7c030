// Package config holds the server's tunables and their file/env/flag loading.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the server process.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	Rooms       int `mapstructure:"rooms"`
	MaxSessions int `mapstructure:"max_sessions"`
	FaultLimit  int `mapstructure:"fault_limit"`

	ReclaimTTL    time.Duration `mapstructure:"reclaim_ttl"`
	TurnTimeout   time.Duration `mapstructure:"turn_timeout"`
	PingAfter     time.Duration `mapstructure:"ping_after"`
	TimeoutAfter  time.Duration `mapstructure:"timeout_after"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Default returns the configuration the server runs with when nothing
// overrides it.
func Default() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          10000,
		Rooms:         6,
		MaxSessions:   4,
		FaultLimit:    5,
		ReclaimTTL:    60 * time.Second,
		TurnTimeout:   30 * time.Second,
		PingAfter:     3 * time.Second,
		TimeoutAfter:  10 * time.Second,
		TickInterval:  time.Second,
		SweepInterval: 3 * time.Second,
	}
}

// Load resolves the configuration from defaults, an optional config file, and
// BLACKJACK_* environment variables, in ascending precedence. Flags bound to
// the same viper instance by the caller take precedence over all of these.
func Load(v *viper.Viper, path string) (Config, error) {
	def := Default()
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("rooms", def.Rooms)
	v.SetDefault("max_sessions", def.MaxSessions)
	v.SetDefault("fault_limit", def.FaultLimit)
	v.SetDefault("reclaim_ttl", def.ReclaimTTL)
	v.SetDefault("turn_timeout", def.TurnTimeout)
	v.SetDefault("ping_after", def.PingAfter)
	v.SetDefault("timeout_after", def.TimeoutAfter)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("sweep_interval", def.SweepInterval)

	v.SetEnvPrefix("BLACKJACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Rooms < 1 || c.Rooms > 64 {
		return fmt.Errorf("rooms %d out of range [1, 64]", c.Rooms)
	}
	if c.MaxSessions < 1 || c.MaxSessions > 1024 {
		return fmt.Errorf("max_sessions %d out of range [1, 1024]", c.MaxSessions)
	}
	if c.FaultLimit < 1 {
		return fmt.Errorf("fault_limit %d must be positive", c.FaultLimit)
	}

	durations := map[string]time.Duration{
		"reclaim_ttl":    c.ReclaimTTL,
		"turn_timeout":   c.TurnTimeout,
		"ping_after":     c.PingAfter,
		"timeout_after":  c.TimeoutAfter,
		"tick_interval":  c.TickInterval,
		"sweep_interval": c.SweepInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.TimeoutAfter <= c.PingAfter {
		return fmt.Errorf("timeout_after %s must exceed ping_after %s", c.TimeoutAfter, c.PingAfter)
	}

	return nil
}
