package vesting

import (
	"fmt"
	"time"
)

// AssetKind tags a vesting entry as a native-coin or fungible-token release.
type AssetKind string

const (
	KindNative AssetKind = "native"
	KindERC20  AssetKind = "erc20"
)

// Config is one validated per-(vault, asset) vesting record. It is immutable
// for the lifetime of a scheduling cycle; a refresh replaces the whole set.
//
// All fields are comparable so two snapshots can be diffed with ==.
type Config struct {
	VaultID     string
	Asset       string // ticker, e.g. "BNB"
	Ecosystem   string // "evm"
	Kind        AssetKind
	Chain       string // "bsc", "ethereum", ...
	Destination string
	Amount      string // decimal string in asset units, >= 0
	Note        string
	CliffDays   int
	Hour        int // vesting time-of-day, local to the manager's location
	Minute      int
}

// Key identifies the at-most-one active ScheduledVest per (vault, asset).
func (c Config) Key() string { return c.VaultID + "/" + c.Asset }

// VestingTime renders the configured time-of-day as HH:MM.
func (c Config) VestingTime() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// State is the lifecycle of one scheduled vest.
type State int

const (
	// Armed: waiting for the first-run instant; a short-interval poll
	// compares the clock against FirstRun.
	Armed State = iota
	// Fired: the first execution ran; transition into Recurring follows
	// immediately (the state is observable mid-transition only in tests).
	Fired
	// Recurring: a daily wall-clock trigger fires the executor indefinitely.
	Recurring
	// Cancelled: terminal; the config disappeared from a refreshed snapshot
	// or was re-armed with changed parameters.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Recurring:
		return "recurring"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ScheduledVest is the derived scheduling record for one Config.
type ScheduledVest struct {
	Config   Config
	FirstRun time.Time // UTC instant of the first execution
	State    State
}

// Status values for an execution outcome.
type Status int

const (
	Success Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the per-asset result of one execution cycle. Failures are data,
// not control flow: they never propagate past the executor.
type Outcome struct {
	ExecutionID string
	Status      Status
	Reason      string // empty on Success
	TxID        string // custody transaction id when the dispatch succeeded
	At          time.Time
}
