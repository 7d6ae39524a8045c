// Package history keeps an append-only audit trail of execution outcomes.
//
// It is an operator convenience, not a scheduling durability layer: restart
// re-derives every schedule from config and current time regardless of what
// is stored here.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the outcome store.
//
// Driver values:
//   - "file": dependency-free JSONL file
//   - "sqlite": SQLite database file
//
// Empty or "none" disables persistence.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	KeepDays    int           // prune horizon; <= 0 means 90
}

// Record is one execution outcome row. Keep it compact and schema-stable.
type Record struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	VaultID string    `json:"vault_id"`
	Asset   string    `json:"asset"`
	Chain   string    `json:"chain"`
	Amount  string    `json:"amount,omitempty"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	TxID    string    `json:"tx_id,omitempty"`
}

// Store is the minimal persistence API the executor sink uses.
type Store interface {
	Append(ctx context.Context, r Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open initializes the configured store. Returns (nil, nil) when disabled.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	if cfg.KeepDays <= 0 {
		cfg.KeepDays = 90
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + cfg.Driver)
	}
}
