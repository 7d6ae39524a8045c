package notify

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

func TestFormatOutcome(t *testing.T) {
	t.Parallel()
	cfg := vesting.Config{VaultID: "vault-1", Asset: "BNB"}

	msg := formatOutcome(cfg, vesting.Outcome{Status: vesting.Success, TxID: "tx-1"})
	if !strings.Contains(msg, "BNB") || !strings.Contains(msg, "vault-1") || !strings.Contains(msg, "tx-1") {
		t.Fatalf("success message missing fields: %q", msg)
	}

	msg = formatOutcome(cfg, vesting.Outcome{Status: vesting.Skipped})
	if !strings.Contains(msg, "skipped") {
		t.Fatalf("skip message = %q", msg)
	}

	msg = formatOutcome(cfg, vesting.Outcome{Status: vesting.Failed, Reason: "status 422"})
	if !strings.Contains(msg, "Error") || !strings.Contains(msg, "status 422") {
		t.Fatalf("failure message = %q", msg)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "", ChatID: 1}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Token: "t", ChatID: 0}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}
