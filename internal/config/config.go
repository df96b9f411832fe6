package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPollInterval      = time.Second
	DefaultWorkdayStartHour  = 17
)

// Config is the on-disk daemon and CLI configuration. The file may contain
// comments and trailing commas.
type Config struct {
	BackendURL        string `json:"backend_url,omitempty"`
	LogLevel          string `json:"log_level,omitempty"`
	HeartbeatInterval string `json:"heartbeat_interval,omitempty"`
	PollInterval      string `json:"poll_interval,omitempty"`
	WorkdayStartHour  int    `json:"workday_start_hour,omitempty"`
	CDPURL            string `json:"cdp_url,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		HeartbeatInterval: DefaultHeartbeatInterval.String(),
		PollInterval:      DefaultPollInterval.String(),
		WorkdayStartHour:  DefaultWorkdayStartHour,
	}
}

func Load(path string) (*Config, error) {
	// Verify file permissions before reading (trust boundary check)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("config file %s has insecure permissions %o (expected 0600). Fix with: chmod 600 %s", path, perm, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault returns the defaults when the file does not exist yet.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	return AtomicWriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.WorkdayStartHour < 0 || c.WorkdayStartHour > 23 {
		return fmt.Errorf("workday_start_hour %d out of range 0-23", c.WorkdayStartHour)
	}
	for name, v := range map[string]string{
		"heartbeat_interval": c.HeartbeatInterval,
		"poll_interval":      c.PollInterval,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Heartbeat() time.Duration {
	return durationOr(c.HeartbeatInterval, DefaultHeartbeatInterval)
}

func (c *Config) Poll() time.Duration {
	return durationOr(c.PollInterval, DefaultPollInterval)
}

// Level maps log_level to a slog level; unknown values mean info.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func durationOr(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(v) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", v)
	}
}
