package vesting

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hvbr1s/fordefi-vesting/internal/fordefi"
)

type fakeDispatcher struct {
	resp   *fordefi.TxResponse
	err    error
	panics bool
	calls  int
	got    *fordefi.TransferRequest
}

func (f *fakeDispatcher) CreateTransaction(_ context.Context, req *fordefi.TransferRequest) (*fordefi.TxResponse, error) {
	f.calls++
	f.got = req
	if f.panics {
		panic("dispatcher exploded")
	}
	return f.resp, f.err
}

type captureSink struct {
	outs []Outcome
}

func (c *captureSink) RecordOutcome(_ context.Context, _ Config, out Outcome) {
	c.outs = append(c.outs, out)
}

func erc20Config() Config {
	return Config{
		VaultID:     "vault-1",
		Asset:       "USDT",
		Ecosystem:   "evm",
		Kind:        KindERC20,
		Chain:       "bsc",
		Destination: "0xdef",
		Amount:      "2500",
		Note:        "USDT daily vest",
		Hour:        18,
	}
}

func TestExecutorSuccess(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{resp: &fordefi.TxResponse{ID: "tx-1", State: "pending"}}
	sink := &captureSink{}
	e := NewExecutor(disp, fordefi.DefaultRules(), zerolog.Nop(), sink)

	out := e.Execute(context.Background(), erc20Config())
	if out.Status != Success {
		t.Fatalf("status = %v (%s), want success", out.Status, out.Reason)
	}
	if out.TxID != "tx-1" {
		t.Fatalf("tx id = %q, want tx-1", out.TxID)
	}
	if out.ExecutionID == "" {
		t.Fatal("execution id missing")
	}
	if disp.calls != 1 {
		t.Fatalf("dispatcher calls = %d, want 1", disp.calls)
	}
	if disp.got == nil || disp.got.Path != fordefi.TransactionsPath {
		t.Fatalf("unexpected request: %+v", disp.got)
	}
	if len(sink.outs) != 1 || sink.outs[0].Status != Success {
		t.Fatalf("sink outcomes = %+v", sink.outs)
	}
}

func TestExecutorSkipsZeroAmount(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{}
	sink := &captureSink{}
	e := NewExecutor(disp, fordefi.DefaultRules(), zerolog.Nop(), sink)

	cfg := erc20Config()
	cfg.Amount = "0.000"
	out := e.Execute(context.Background(), cfg)
	if out.Status != Skipped {
		t.Fatalf("status = %v, want skipped", out.Status)
	}
	if disp.calls != 0 {
		t.Fatal("zero amount must not reach the custody API")
	}
	if len(sink.outs) != 1 || sink.outs[0].Status != Skipped {
		t.Fatalf("sink outcomes = %+v", sink.outs)
	}
}

func TestExecutorFailureModes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		mutate     func(*Config)
		disp       fakeDispatcher
		wantReason string
		wantCalls  int
	}{
		{
			name:       "non-evm ecosystem",
			mutate:     func(c *Config) { c.Ecosystem = "solana" },
			wantReason: "unsupported configuration: kind=erc20, ecosystem=solana",
		},
		{
			name:       "unknown token fails closed",
			mutate:     func(c *Config) { c.Asset = "DOGE" },
			wantReason: "not supported",
		},
		{
			name:       "api rejection",
			disp:       fakeDispatcher{err: &fordefi.APIError{Status: 422, Detail: "Invalid vault"}},
			wantReason: "status 422",
			wantCalls:  1,
		},
		{
			name:       "network failure",
			disp:       fakeDispatcher{err: errors.New("connection refused")},
			wantReason: "network error:",
			wantCalls:  1,
		},
		{
			name:       "panic is contained",
			disp:       fakeDispatcher{panics: true},
			wantReason: "panic during execution",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			disp := tt.disp
			sink := &captureSink{}
			e := NewExecutor(&disp, fordefi.DefaultRules(), zerolog.Nop(), sink)

			cfg := erc20Config()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			out := e.Execute(context.Background(), cfg)
			if out.Status != Failed {
				t.Fatalf("status = %v, want failed", out.Status)
			}
			if !strings.Contains(out.Reason, tt.wantReason) {
				t.Fatalf("reason = %q, want substring %q", out.Reason, tt.wantReason)
			}
			if disp.calls != tt.wantCalls {
				t.Fatalf("dispatcher calls = %d, want %d", disp.calls, tt.wantCalls)
			}
			// Every outcome reaches the sinks, failures included.
			if len(sink.outs) != 1 || sink.outs[0].Status != Failed {
				t.Fatalf("sink outcomes = %+v", sink.outs)
			}
		})
	}
}
