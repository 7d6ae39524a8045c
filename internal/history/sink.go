package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

// Sink adapts a Store to the executor's OutcomeSink. Persistence errors are
// logged, never surfaced: a broken audit trail must not fail a vest cycle.
type Sink struct {
	store Store
	log   zerolog.Logger
}

func NewSink(store Store, log zerolog.Logger) *Sink {
	return &Sink{store: store, log: log}
}

func (s *Sink) RecordOutcome(ctx context.Context, cfg vesting.Config, out vesting.Outcome) {
	if s == nil || s.store == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := s.store.Append(wctx, Record{
		ID:      out.ExecutionID,
		At:      out.At,
		VaultID: cfg.VaultID,
		Asset:   cfg.Asset,
		Chain:   cfg.Chain,
		Amount:  cfg.Amount,
		Status:  out.Status.String(),
		Reason:  out.Reason,
		TxID:    out.TxID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("execution_id", out.ExecutionID).Msg("failed to record outcome")
	}
}
