// Package app wires the vestd services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvbr1s/fordefi-vesting/internal/config"
	"github.com/hvbr1s/fordefi-vesting/internal/fordefi"
	"github.com/hvbr1s/fordefi-vesting/internal/history"
	"github.com/hvbr1s/fordefi-vesting/internal/logging"
	"github.com/hvbr1s/fordefi-vesting/internal/notify"
	"github.com/hvbr1s/fordefi-vesting/internal/scheduler"
	"github.com/hvbr1s/fordefi-vesting/internal/secrets"
	"github.com/hvbr1s/fordefi-vesting/internal/vesting"
)

const refreshTrigger = "config:refresh"

type App struct {
	log      zerolog.Logger
	logClose func()

	cfgMgr   *config.Manager
	store    history.Store
	notifier *notify.Service
	sched    *scheduler.Service
	manager  *vesting.Manager

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

// New loads and validates the config and prepares logging. Everything else
// is wired in Start, where secret retrieval failures are fatal.
func New(cfgPath string) (*App, error) {
	boot, err := config.ParseFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := boot.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, logClose, err := logging.New(logging.Config{
		Level:   boot.Logging.Level,
		Console: boot.Logging.Console,
		File:    logging.FileConfig{Enabled: boot.Logging.File != "", Path: boot.Logging.File},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	return &App{
		log:      log,
		logClose: logClose,
		cfgMgr:   config.NewManager(cfgPath, logging.Component(log, "config")),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}
	poll, err := cfg.Scheduler.PollInterval()
	if err != nil {
		return err
	}

	// Secret retrieval happens exactly once; a failure here aborts startup
	// rather than being retried silently.
	src, err := secrets.Open(cfg.Secrets.Driver, cfg.Secrets.Dir)
	if err != nil {
		return fmt.Errorf("open secret source: %w", err)
	}
	token, err := src.Fetch(ctx, secrets.NameAPIUserToken)
	if err != nil {
		return fmt.Errorf("fetch api user token: %w", err)
	}
	keyPEM, err := src.Fetch(ctx, secrets.NameAPISignerKey)
	if err != nil {
		return fmt.Errorf("fetch api signer key: %w", err)
	}
	signer, err := fordefi.NewSigner(keyPEM)
	if err != nil {
		return err
	}

	timeout, err := cfg.Fordefi.TimeoutDuration()
	if err != nil {
		return err
	}
	client := fordefi.NewClient(
		cfg.Fordefi.URL(), token, signer, logging.Component(a.log, "fordefi"),
		fordefi.WithTimeout(timeout),
		fordefi.WithRateLimit(cfg.Fordefi.RatePerSec, cfg.Fordefi.Burst),
	)

	var sinks []vesting.OutcomeSink
	if cfg.History != nil {
		busy, _ := time.ParseDuration(cfg.History.BusyTimeout)
		a.store, err = history.Open(history.Config{
			Driver:      cfg.History.Driver,
			Path:        cfg.History.Path,
			BusyTimeout: busy,
			KeepDays:    cfg.History.KeepDays,
		}, logging.Component(a.log, "history"))
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		if a.store != nil {
			sinks = append(sinks, history.NewSink(a.store, logging.Component(a.log, "history")))
		}
	}
	if cfg.Notify != nil && cfg.Notify.Enabled {
		tokenName := cfg.Notify.TokenSecret
		if tokenName == "" {
			tokenName = secrets.NameBotToken
		}
		botToken, err := src.Fetch(ctx, tokenName)
		if err != nil {
			return fmt.Errorf("fetch telegram token: %w", err)
		}
		a.notifier, err = notify.New(notify.Config{
			Token:      botToken,
			ChatID:     cfg.Notify.ChatID,
			RatePerSec: cfg.Notify.RatePerSec,
			QueueSize:  cfg.Notify.QueueSize,
		}, logging.Component(a.log, "notify"))
		if err != nil {
			return fmt.Errorf("init notifier: %w", err)
		}
		sinks = append(sinks, a.notifier)
	}

	rules := buildRules(cfg)
	executor := vesting.NewExecutor(client, rules, logging.Component(a.log, "executor"), sinks...)

	a.sched = scheduler.New(loc, logging.Component(a.log, "scheduler"))
	a.manager = vesting.NewManager(a.sched, executor.Execute, loc, poll, logging.Component(a.log, "vesting"))

	// Initial schedule set, then a daily reconcile at the configured local
	// time so config edits are picked up even without a filesystem event.
	a.refresh(cfg)
	rh, rm, err := cfg.Scheduler.RefreshTime()
	if err != nil {
		return err
	}
	if err := a.sched.AddDaily(refreshTrigger, rh, rm, func(context.Context) error {
		reloaded, err := a.cfgMgr.Load()
		if err != nil {
			a.log.Warn().Err(err).Msg("daily refresh: config reload failed; keeping current schedules")
			return nil
		}
		a.refresh(reloaded)
		return nil
	}); err != nil {
		return err
	}

	// Filesystem watch gives the same reconcile without waiting for the
	// daily trigger.
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	sub := a.cfgMgr.Subscribe(1)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgMgr.Watch(watchCtx)
	}()
	go func() {
		defer a.watchWG.Done()
		lastTZ := cfg.Scheduler.Timezone
		for {
			select {
			case <-watchCtx.Done():
				return
			case reloaded := <-sub:
				if reloaded == nil {
					return
				}
				if reloaded.Scheduler.Timezone != lastTZ {
					a.log.Warn().Str("from", lastTZ).Str("to", reloaded.Scheduler.Timezone).
						Msg("scheduler.timezone changed; restart vestd to apply it")
					lastTZ = reloaded.Scheduler.Timezone
				}
				a.refresh(reloaded)
			}
		}
	}()

	if a.notifier != nil {
		a.notifier.Start(ctx)
	}
	a.sched.Start(ctx)
	a.log.Info().Str("tz", loc.String()).Msg("vestd started")
	return nil
}

// refresh rebuilds the snapshot and reconciles the vest set. Malformed
// records are logged and skipped; valid ones still load.
func (a *App) refresh(cfg *config.Config) {
	snapshot, recordErrs := cfg.Snapshot()
	for _, re := range recordErrs {
		a.log.Error().Str("vault", re.VaultID).Str("asset", re.Asset).Err(re.Err).
			Msg("skipping malformed vesting record")
	}
	a.manager.Refresh(snapshot)
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.watchWG.Wait()
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info().Msg("vestd stopped")
	if a.logClose != nil {
		a.logClose()
	}
	return nil
}

func buildRules(cfg *config.Config) *fordefi.Rules {
	rules := fordefi.DefaultRules()
	for _, r := range cfg.Assets {
		if r.Token == "" {
			rules.AddNative(r.Chain, r.Decimals)
			continue
		}
		rules.AddToken(r.Chain, r.Token, r.Contract, r.Decimals)
	}
	return rules
}
