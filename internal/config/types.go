package config

// Config is the full on-disk configuration for vestd.
//
// Secrets (the Fordefi API user token and the API signer private key) never
// live in this file; they come from the secret source (internal/secrets).
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Fordefi   FordefiConfig   `json:"fordefi"`
	Secrets   SecretsConfig   `json:"secrets,omitempty"`
	History   *HistoryConfig  `json:"history,omitempty"`
	Notify    *NotifyConfig   `json:"notify,omitempty"`

	// Assets extends the built-in scaling/contract table. Entries with a
	// token are fungible-token rules; entries without one override the
	// chain's native decimals.
	Assets []AssetRuleConfig `json:"assets,omitempty"`

	// Vaults is the vesting config source: one block per custody vault,
	// each holding the per-asset vesting entries.
	Vaults []VaultBlock `json:"vaults"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    string `json:"file,omitempty"` // optional JSON log file path
}

// SchedulerConfig controls trigger timing.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type SchedulerConfig struct {
	// Timezone is the IANA location (or tzdata abbreviation such as "CET")
	// in which vesting_time values are interpreted. Default: "CET".
	Timezone string `json:"timezone,omitempty"`

	// ArmedPollInterval is how often armed vests check whether their first
	// run instant has been reached. Default: "1m". Capped at 1m.
	ArmedPollInterval string `json:"armed_poll_interval,omitempty"`

	// RefreshAt is the local HH:MM at which the vault set is reloaded and
	// reconciled daily. Default: "16:00".
	RefreshAt string `json:"refresh_at,omitempty"`
}

type FordefiConfig struct {
	BaseURL string `json:"base_url,omitempty"` // default: https://api.fordefi.com

	// Timeout bounds a single transaction dispatch. Go duration string,
	// default "30s".
	Timeout string `json:"timeout,omitempty"`

	// RatePerSec / Burst feed the client-side request limiter.
	// Defaults: 2 req/s, burst 4.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// SecretsConfig selects where key material comes from.
//
// Driver "env" (default) reads VESTD_-prefixed environment variables;
// driver "file" reads one file per secret under Dir (point it at
// $CREDENTIALS_DIRECTORY when running under systemd LoadCredential=).
type SecretsConfig struct {
	Driver string `json:"driver,omitempty"`
	Dir    string `json:"dir,omitempty"`
}

// HistoryConfig controls the optional execution-outcome store.
//
// Driver values: "none" (or empty), "file" (JSONL), "sqlite".
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	KeepDays    int    `json:"keep_days,omitempty"`    // prune horizon, default 90
}

// NotifyConfig controls per-outcome Telegram notifications.
//
// The bot token is a secret and is fetched from the secret source under the
// name given by TokenSecret (default "TELEGRAM_BOT_TOKEN").
type NotifyConfig struct {
	Enabled     bool   `json:"enabled"`
	TokenSecret string `json:"token_secret,omitempty"`
	ChatID      int64  `json:"chat_id"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // default 1
	QueueSize   int    `json:"queue_size,omitempty"`   // default 64
}

type AssetRuleConfig struct {
	Chain    string `json:"chain"`
	Token    string `json:"token,omitempty"`
	Contract string `json:"contract,omitempty"`
	Decimals int    `json:"decimals"`
}

// VaultBlock mirrors one custody vault document: the vault ID plus the
// per-asset vesting entries it holds.
type VaultBlock struct {
	ID     string       `json:"id"`
	Tokens []TokenEntry `json:"tokens"`
}

// TokenEntry is one per-asset vesting record as written by operators.
// Validation happens at load time (see Snapshot), not at execution time.
type TokenEntry struct {
	Asset       string `json:"asset"`
	Ecosystem   string `json:"ecosystem"`    // "evm"
	Kind        string `json:"kind"`         // "native" | "erc20"
	Chain       string `json:"chain"`        // "bsc", "ethereum", ...
	Destination string `json:"destination"`  // 0x... address
	Amount      string `json:"amount"`       // decimal string, asset units
	Note        string `json:"note,omitempty"`
	CliffDays   int    `json:"cliff_days"`   // whole days before first vest
	VestingTime string `json:"vesting_time"` // local HH:MM
}
