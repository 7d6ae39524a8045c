package config

import (
	"fmt"
	"strings"

	"github.com/hvbr1s/fordefi-vesting/internal/fordefi"
	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

// RecordError reports one malformed vault entry. It is fatal to that single
// record only: the rest of the snapshot still loads.
type RecordError struct {
	VaultID string
	Asset   string
	Err     error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("vault %s asset %s: %v", e.VaultID, e.Asset, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Snapshot flattens the vault blocks into the immutable set of validated
// vesting configs. Each call builds a fresh slice (copy-on-refresh); callers
// never observe partial updates.
func (c *Config) Snapshot() ([]vesting.Config, []RecordError) {
	var (
		out  []vesting.Config
		errs []RecordError
	)
	seen := map[string]bool{}

	for bi, block := range c.Vaults {
		vaultID := strings.TrimSpace(block.ID)
		if vaultID == "" {
			errs = append(errs, RecordError{
				VaultID: fmt.Sprintf("vaults[%d]", bi),
				Err:     fmt.Errorf("vault id is required"),
			})
			continue
		}
		for _, tok := range block.Tokens {
			vc, err := tok.toVesting(vaultID)
			if err != nil {
				errs = append(errs, RecordError{VaultID: vaultID, Asset: tok.Asset, Err: err})
				continue
			}
			if seen[vc.Key()] {
				errs = append(errs, RecordError{VaultID: vaultID, Asset: tok.Asset,
					Err: fmt.Errorf("duplicate entry for this vault/asset pair")})
				continue
			}
			seen[vc.Key()] = true
			out = append(out, vc)
		}
	}
	return out, errs
}

func (t TokenEntry) toVesting(vaultID string) (vesting.Config, error) {
	var zero vesting.Config

	asset := strings.TrimSpace(t.Asset)
	if asset == "" {
		return zero, fmt.Errorf("asset is required")
	}
	kind := vesting.AssetKind(strings.ToLower(strings.TrimSpace(t.Kind)))
	switch kind {
	case vesting.KindNative, vesting.KindERC20:
	default:
		return zero, fmt.Errorf("unknown kind %q (want native or erc20)", t.Kind)
	}
	eco := strings.ToLower(strings.TrimSpace(t.Ecosystem))
	if eco == "" {
		return zero, fmt.Errorf("ecosystem is required")
	}
	chain := strings.ToLower(strings.TrimSpace(t.Chain))
	if chain == "" {
		return zero, fmt.Errorf("chain is required")
	}
	dest := strings.TrimSpace(t.Destination)
	if dest == "" {
		return zero, fmt.Errorf("destination is required")
	}
	amount := strings.TrimSpace(t.Amount)
	if err := fordefi.ValidateAmount(amount); err != nil {
		return zero, fmt.Errorf("amount: %w", err)
	}
	if t.CliffDays < 0 {
		return zero, fmt.Errorf("cliff_days must be >= 0, got %d", t.CliffDays)
	}
	hour, minute, err := vesting.ParseHHMM(t.VestingTime)
	if err != nil {
		return zero, fmt.Errorf("vesting_time: %w", err)
	}

	return vesting.Config{
		VaultID:     vaultID,
		Asset:       asset,
		Ecosystem:   eco,
		Kind:        kind,
		Chain:       chain,
		Destination: dest,
		Amount:      amount,
		Note:        strings.TrimSpace(t.Note),
		CliffDays:   t.CliffDays,
		Hour:        hour,
		Minute:      minute,
	}, nil
}
