package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

// Defaults applied when fields are omitted.
const (
	DefaultTimezone     = "CET"
	DefaultRefreshAt    = "16:00"
	DefaultBaseURL      = "https://api.fordefi.com"
	defaultPollInterval = time.Minute
	defaultTimeout      = 30 * time.Second
)

// ParseFile reads and strictly decodes a YAML or JSON config file.
// Unknown fields and trailing data are rejected.
func ParseFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Validate checks everything that must hold for the process to start.
// Per-record vault entries are deliberately not validated here: a malformed
// record skips that record only (see Snapshot).
func (c *Config) Validate() error {
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if _, err := c.Scheduler.PollInterval(); err != nil {
		return err
	}
	if _, _, err := vesting.ParseHHMM(c.Scheduler.refreshAt()); err != nil {
		return fmt.Errorf("scheduler.refresh_at: %w", err)
	}
	if _, err := c.Fordefi.TimeoutDuration(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Secrets.Driver)) {
	case "", "env", "file":
	default:
		return fmt.Errorf("secrets.driver: unknown driver %q", c.Secrets.Driver)
	}
	if c.History != nil {
		switch strings.ToLower(strings.TrimSpace(c.History.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("history.driver: unknown driver %q", c.History.Driver)
		}
		if _, err := parseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Notify != nil && c.Notify.Enabled && c.Notify.ChatID == 0 {
		return fmt.Errorf("notify.chat_id is required when notify is enabled")
	}
	for i, r := range c.Assets {
		if strings.TrimSpace(r.Chain) == "" {
			return fmt.Errorf("assets[%d].chain is required", i)
		}
		if r.Decimals < 0 || r.Decimals > 30 {
			return fmt.Errorf("assets[%d].decimals out of range: %d", i, r.Decimals)
		}
		if strings.TrimSpace(r.Token) != "" && strings.TrimSpace(r.Contract) == "" {
			return fmt.Errorf("assets[%d].contract is required for token rules", i)
		}
	}
	return nil
}

// Location resolves the scheduler timezone, defaulting to CET to match the
// original vesting setup.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

// PollInterval resolves the armed-poll cadence. Armed vests must check at
// least once a minute, so larger values are capped.
func (s SchedulerConfig) PollInterval() (time.Duration, error) {
	d, err := parseDurationField("scheduler.armed_poll_interval", s.ArmedPollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 || d > defaultPollInterval {
		d = defaultPollInterval
	}
	return d, nil
}

// RefreshTime returns the daily reconcile time as (hour, minute).
func (s SchedulerConfig) RefreshTime() (int, int, error) {
	return vesting.ParseHHMM(s.refreshAt())
}

func (s SchedulerConfig) refreshAt() string {
	at := strings.TrimSpace(s.RefreshAt)
	if at == "" {
		at = DefaultRefreshAt
	}
	return at
}

func (f FordefiConfig) URL() string {
	u := strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
	if u == "" {
		u = DefaultBaseURL
	}
	return u
}

func (f FordefiConfig) TimeoutDuration() (time.Duration, error) {
	d, err := parseDurationField("fordefi.timeout", f.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		d = defaultTimeout
	}
	return d, nil
}

func parseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
