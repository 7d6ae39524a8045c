// Package notify pushes per-outcome messages to a Telegram chat.
//
// The pipeline is deliberately lossy: outcomes are queued and a slow or
// unreachable Telegram API drops the oldest pending message instead of ever
// delaying the scheduling loop. The log remains the authoritative record.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int // default 1
	QueueSize  int // default 64
}

// Service is a send-only Telegram reporter implementing
// vesting.OutcomeSink.
type Service struct {
	bot     *tele.Bot
	chat    tele.Recipient
	limiter *rate.Limiter
	log     zerolog.Logger

	queue chan string

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, log zerolog.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Service{
		bot:     bot,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		log:     log,
		queue:   make(chan string, size),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if _, err := s.bot.Send(s.chat, msg); err != nil {
				s.log.Warn().Err(err).Msg("telegram notification failed")
			}
		}
	}
}

// RecordOutcome formats and enqueues one outcome message. Never blocks.
func (s *Service) RecordOutcome(_ context.Context, cfg vesting.Config, out vesting.Outcome) {
	msg := formatOutcome(cfg, out)
	select {
	case s.queue <- msg:
	default:
		// Drop the oldest pending message, keep the newest.
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- msg:
		default:
			s.log.Debug().Msg("notification dropped (queue full)")
		}
	}
}

func formatOutcome(cfg vesting.Config, out vesting.Outcome) string {
	switch out.Status {
	case vesting.Success:
		msg := fmt.Sprintf("✅ %s vesting completed successfully (vault %s)", cfg.Asset, cfg.VaultID)
		if out.TxID != "" {
			msg += "\ntx: " + out.TxID
		}
		return msg
	case vesting.Skipped:
		return fmt.Sprintf("⚠️ Vesting amount for %s is 0, skipped (vault %s)", cfg.Asset, cfg.VaultID)
	default:
		return fmt.Sprintf("❌ Error during %s vesting (vault %s): %s", cfg.Asset, cfg.VaultID, out.Reason)
	}
}
