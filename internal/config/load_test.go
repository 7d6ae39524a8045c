package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const sampleYAML = `logging:
  level: debug
  console: true
scheduler:
  timezone: UTC
  armed_poll_interval: 30s
  refresh_at: "16:00"
fordefi:
  base_url: https://api.example.com/
  timeout: 10s
secrets:
  driver: env
vaults:
  - id: vault-1
    tokens:
      - asset: BNB
        ecosystem: evm
        kind: native
        chain: bsc
        destination: "0xabc"
        amount: "0.5"
        note: BNB daily vest
        cliff_days: 7
        vesting_time: "18:00"
      - asset: USDT
        ecosystem: evm
        kind: erc20
        chain: bsc
        destination: "0xdef"
        amount: "2500"
        cliff_days: 0
        vesting_time: "09:30"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseFileYAML(t *testing.T) {
	t.Parallel()
	cfg, err := ParseFile(writeConfig(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if got := cfg.Fordefi.URL(); got != "https://api.example.com" {
		t.Fatalf("URL() = %q (trailing slash must be trimmed)", got)
	}
	d, err := cfg.Fordefi.TimeoutDuration()
	if err != nil || d != 10*time.Second {
		t.Fatalf("timeout = %v, %v", d, err)
	}
	p, err := cfg.Scheduler.PollInterval()
	if err != nil || p != 30*time.Second {
		t.Fatalf("poll = %v, %v", p, err)
	}

	snapshot, errs := cfg.Snapshot()
	if len(errs) != 0 {
		t.Fatalf("record errors: %v", errs)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snapshot))
	}
	vc := snapshot[0]
	if vc.Key() != "vault-1/BNB" || vc.CliffDays != 7 || vc.Hour != 18 || vc.Minute != 0 {
		t.Fatalf("unexpected record: %+v", vc)
	}
}

func TestParseFileRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := ParseFile(writeConfig(t, "config.yaml", sampleYAML+"bogus_field: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseFile(writeConfig(t, "config.yaml", "vaults: []\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Fatalf("timezone = %q, want %q", loc, DefaultTimezone)
	}
	h, m, err := cfg.Scheduler.RefreshTime()
	if err != nil || h != 16 || m != 0 {
		t.Fatalf("refresh = %02d:%02d, %v", h, m, err)
	}
	p, _ := cfg.Scheduler.PollInterval()
	if p != time.Minute {
		t.Fatalf("poll default = %v, want 1m", p)
	}
	if cfg.Fordefi.URL() != DefaultBaseURL {
		t.Fatalf("base url default = %q", cfg.Fordefi.URL())
	}
}

func TestPollIntervalCapped(t *testing.T) {
	t.Parallel()
	s := SchedulerConfig{ArmedPollInterval: "10m"}
	p, err := s.PollInterval()
	if err != nil {
		t.Fatalf("PollInterval: %v", err)
	}
	if p != time.Minute {
		t.Fatalf("poll = %v, want cap at 1m", p)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{name: "bad refresh", mutate: func(c *Config) { c.Scheduler.RefreshAt = "25:00" }},
		{name: "bad poll", mutate: func(c *Config) { c.Scheduler.ArmedPollInterval = "soon" }},
		{name: "bad secrets driver", mutate: func(c *Config) { c.Secrets.Driver = "vault" }},
		{name: "bad history driver", mutate: func(c *Config) { c.History = &HistoryConfig{Driver: "redis"} }},
		{name: "notify without chat", mutate: func(c *Config) { c.Notify = &NotifyConfig{Enabled: true} }},
		{name: "asset rule without chain", mutate: func(c *Config) {
			c.Assets = []AssetRuleConfig{{Decimals: 18}}
		}},
		{name: "token rule without contract", mutate: func(c *Config) {
			c.Assets = []AssetRuleConfig{{Chain: "bsc", Token: "cake", Decimals: 18}}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSnapshotSkipsMalformedRecords(t *testing.T) {
	t.Parallel()
	cfg := &Config{Vaults: []VaultBlock{{
		ID: "vault-1",
		Tokens: []TokenEntry{
			{Asset: "BNB", Ecosystem: "evm", Kind: "native", Chain: "bsc",
				Destination: "0xabc", Amount: "1", VestingTime: "18:00"},
			// Malformed: bad vesting time.
			{Asset: "USDT", Ecosystem: "evm", Kind: "erc20", Chain: "bsc",
				Destination: "0xdef", Amount: "1", VestingTime: "25:99"},
			// Malformed: negative cliff.
			{Asset: "PEPE", Ecosystem: "evm", Kind: "erc20", Chain: "ethereum",
				Destination: "0xfff", Amount: "1", CliffDays: -1, VestingTime: "18:00"},
			// Duplicate of the first record's (vault, asset) key.
			{Asset: "BNB", Ecosystem: "evm", Kind: "native", Chain: "bsc",
				Destination: "0xabc", Amount: "2", VestingTime: "19:00"},
		},
	}}}

	snapshot, errs := cfg.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("snapshot size = %d, want 1 (bad records skip, good ones load)", len(snapshot))
	}
	if len(errs) != 3 {
		t.Fatalf("record errors = %d, want 3: %v", len(errs), errs)
	}
	if snapshot[0].Asset != "BNB" || snapshot[0].Amount != "1" {
		t.Fatalf("surviving record = %+v", snapshot[0])
	}
}

func TestManagerLoadAndGet(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML)
	m := NewManager(path, zerolog.Nop())

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}

	// A broken file fails Load and must not disturb the committed config.
	if err := os.WriteFile(path, []byte("vaults: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.Load(); err == nil {
		t.Fatal("expected Load error for broken file")
	}
	if m.Get() != cfg {
		t.Fatal("failed Load replaced the committed config")
	}
}
