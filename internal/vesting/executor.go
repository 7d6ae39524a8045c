package vesting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hvbr1s/fordefi-vesting/internal/fordefi"
)

// Dispatcher is the custody call the executor needs; satisfied by
// *fordefi.Client.
type Dispatcher interface {
	CreateTransaction(ctx context.Context, req *fordefi.TransferRequest) (*fordefi.TxResponse, error)
}

// OutcomeSink receives every execution outcome as it happens (history store,
// notifier). Sinks must not block for long; they run on the scheduling loop.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, cfg Config, out Outcome)
}

// Executor runs one vest cycle for one asset: validate, build, sign,
// dispatch, classify. Every failure is converted into an Outcome at this
// boundary; nothing propagates into the recurrence machinery.
type Executor struct {
	client Dispatcher
	rules  *fordefi.Rules
	log    zerolog.Logger
	sinks  []OutcomeSink
}

func NewExecutor(client Dispatcher, rules *fordefi.Rules, log zerolog.Logger, sinks ...OutcomeSink) *Executor {
	return &Executor{client: client, rules: rules, log: log, sinks: sinks}
}

// Execute performs one transfer cycle and reports the outcome immediately.
func (e *Executor) Execute(ctx context.Context, cfg Config) (out Outcome) {
	out = Outcome{ExecutionID: uuid.NewString(), At: time.Now().UTC()}

	defer func() {
		if r := recover(); r != nil {
			out.Status = Failed
			out.Reason = fmt.Sprintf("panic during execution: %v", r)
		}
		e.report(ctx, cfg, out)
	}()

	log := e.log.With().
		Str("vault", cfg.VaultID).
		Str("asset", cfg.Asset).
		Str("chain", cfg.Chain).
		Str("execution_id", out.ExecutionID).
		Logger()
	log.Info().Msg("vesting time reached; executing transfer")

	if cfg.Ecosystem != "evm" {
		out.Status = Failed
		out.Reason = fmt.Sprintf("unsupported configuration: kind=%s, ecosystem=%s", cfg.Kind, cfg.Ecosystem)
		return out
	}

	req, err := fordefi.BuildTransfer(e.rules, fordefi.TransferParams{
		Chain:       cfg.Chain,
		Kind:        string(cfg.Kind),
		Token:       strings.ToLower(cfg.Asset),
		Destination: cfg.Destination,
		Amount:      cfg.Amount,
		Note:        cfg.Note,
		VaultID:     cfg.VaultID,
	})
	switch {
	case errors.Is(err, fordefi.ErrZeroAmount):
		// Deliberate no-op, not a failure.
		out.Status = Skipped
		out.Reason = "configured amount is zero"
		return out
	case err != nil:
		out.Status = Failed
		out.Reason = err.Error()
		return out
	}

	resp, err := e.client.CreateTransaction(ctx, req)
	if err != nil {
		out.Status = Failed
		var apiErr *fordefi.APIError
		if errors.As(err, &apiErr) {
			out.Reason = apiErr.Error()
		} else {
			out.Reason = fmt.Sprintf("network error: %v", err)
		}
		return out
	}

	out.Status = Success
	out.TxID = resp.ID
	return out
}

func (e *Executor) report(ctx context.Context, cfg Config, out Outcome) {
	ev := e.log.Info()
	switch out.Status {
	case Failed:
		ev = e.log.Error()
	case Skipped:
		ev = e.log.Warn()
	}
	ev.Str("vault", cfg.VaultID).
		Str("asset", cfg.Asset).
		Str("status", out.Status.String()).
		Str("execution_id", out.ExecutionID)
	if out.Reason != "" {
		ev = ev.Str("reason", out.Reason)
	}
	if out.TxID != "" {
		ev = ev.Str("tx_id", out.TxID)
	}
	ev.Msg("vest cycle finished")

	for _, s := range e.sinks {
		s.RecordOutcome(ctx, cfg, out)
	}
}
