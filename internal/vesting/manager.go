package vesting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TriggerService is the slice of the trigger scheduler the manager uses.
// Registering a name that already exists replaces the previous trigger,
// which is what makes re-arming idempotent. Satisfied by
// *scheduler.Service.
type TriggerService interface {
	AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error
	AddDaily(name string, hour, minute int, job func(ctx context.Context) error) error
	Remove(name string) bool
}

// ExecuteFunc runs one vest cycle; it must never panic or return control
// flow through errors (outcomes are data).
type ExecuteFunc func(ctx context.Context, cfg Config) Outcome

// Manager owns the per-asset vest lifecycle:
//
//	Armed --(poll sees now >= first run)--> Fired --> Recurring
//	any state --(refresh drops or changes the config)--> Cancelled
//
// The first execution is gated by a short-interval poll so the cliff instant
// is honored exactly once; after it, a daily trigger anchored to the local
// wall-clock time-of-day keeps "18:00 every day" correct across DST (a fixed
// 24h period would drift by an hour at each transition).
type Manager struct {
	triggers TriggerService
	exec     ExecuteFunc
	loc      *time.Location
	poll     time.Duration
	clock    func() time.Time
	log      zerolog.Logger

	mu    sync.Mutex
	vests map[string]*ScheduledVest
}

type ManagerOption func(*Manager)

// WithClock injects a fake time source for tests.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

func NewManager(triggers TriggerService, exec ExecuteFunc, loc *time.Location, poll time.Duration, log zerolog.Logger, opts ...ManagerOption) *Manager {
	if poll <= 0 || poll > time.Minute {
		poll = time.Minute
	}
	m := &Manager{
		triggers: triggers,
		exec:     exec,
		loc:      loc,
		poll:     poll,
		clock:    time.Now,
		log:      log,
		vests:    map[string]*ScheduledVest{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Schedule arms one vest. An existing vest for the same (vault, asset) key
// is cancelled first.
func (m *Manager) Schedule(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduleLocked(cfg)
}

func (m *Manager) scheduleLocked(cfg Config) error {
	key := cfg.Key()
	if _, ok := m.vests[key]; ok {
		m.cancelLocked(key)
	}

	firstRun := ResolveFirstRun(m.clock(), cfg.CliffDays, cfg.Hour, cfg.Minute, m.loc)
	sv := &ScheduledVest{Config: cfg, FirstRun: firstRun, State: Armed}
	m.vests[key] = sv

	if err := m.triggers.AddInterval(triggerName(key), m.poll, func(ctx context.Context) error {
		m.tick(ctx, key)
		return nil
	}); err != nil {
		delete(m.vests, key)
		return err
	}

	m.log.Info().
		Str("vault", cfg.VaultID).
		Str("asset", cfg.Asset).
		Time("first_run_utc", firstRun).
		Str("vesting_time", cfg.VestingTime()).
		Int("cliff_days", cfg.CliffDays).
		Msg("vest armed")
	return nil
}

// tick is the armed-state poll: at most one tick observes now >= FirstRun
// while the state is still Armed, so the Fired transition happens exactly
// once even when the loop was delayed past the due instant.
func (m *Manager) tick(ctx context.Context, key string) {
	m.mu.Lock()
	sv, ok := m.vests[key]
	if !ok || sv.State != Armed || m.clock().Before(sv.FirstRun) {
		m.mu.Unlock()
		return
	}
	sv.State = Fired
	cfg := sv.Config
	m.mu.Unlock()

	// Synchronous first execution; an in-flight call is never interrupted
	// by a concurrent refresh.
	m.exec(ctx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.vests[key]
	if !ok || cur != sv || cur.State != Fired {
		// A refresh cancelled or re-armed this vest while the first
		// execution ran; the map entry is gone or belongs to a fresh Armed
		// vest with its own cliff. Do not install the recurrence.
		return
	}

	// Registering the daily trigger under the same name replaces the armed
	// poll, so exactly one trigger per key exists at any point.
	if err := m.triggers.AddDaily(triggerName(key), cfg.Hour, cfg.Minute, func(ctx context.Context) error {
		m.runRecurring(ctx, key)
		return nil
	}); err != nil {
		m.log.Error().Err(err).Str("vest", key).Msg("failed to install daily trigger")
		m.cancelLocked(key)
		return
	}
	sv.State = Recurring
	m.log.Info().Str("vest", key).Str("at", cfg.VestingTime()).Msg("daily recurrence installed")
}

// runRecurring fires one recurring cycle. Failures are reported by the
// executor and deliberately not acted on here: the next daily occurrence is
// the retry policy.
func (m *Manager) runRecurring(ctx context.Context, key string) {
	m.mu.Lock()
	sv, ok := m.vests[key]
	if !ok || sv.State != Recurring {
		m.mu.Unlock()
		return
	}
	cfg := sv.Config
	m.mu.Unlock()

	m.exec(ctx, cfg)
}

// Refresh reconciles the vest set against a fresh config snapshot:
// disappeared configs are cancelled, changed configs are re-armed, unchanged
// configs are left untouched so they cannot double-fire within the same day.
func (m *Manager) Refresh(snapshot []Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]Config, len(snapshot))
	for _, cfg := range snapshot {
		next[cfg.Key()] = cfg
	}

	// Iterate over a stable key list: re-arming mutates m.vests in place.
	keys := make([]string, 0, len(m.vests))
	for key := range m.vests {
		keys = append(keys, key)
	}

	var cancelled, rearmed, added int
	for _, key := range keys {
		sv := m.vests[key]
		cfg, ok := next[key]
		if !ok {
			m.cancelLocked(key)
			cancelled++
			continue
		}
		if cfg != sv.Config {
			if err := m.scheduleLocked(cfg); err != nil {
				m.log.Error().Err(err).Str("vest", key).Msg("re-arm failed")
			} else {
				rearmed++
			}
		}
		delete(next, key)
	}
	for _, cfg := range next {
		if err := m.scheduleLocked(cfg); err != nil {
			m.log.Error().Err(err).Str("vest", cfg.Key()).Msg("arm failed")
			continue
		}
		added++
	}

	m.log.Info().
		Int("active", len(m.vests)).
		Int("added", added).
		Int("rearmed", rearmed).
		Int("cancelled", cancelled).
		Msg("vesting schedules refreshed")
}

// Cancel removes one vest and its trigger.
func (m *Manager) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vests[key]
	if ok {
		m.cancelLocked(key)
	}
	return ok
}

func (m *Manager) cancelLocked(key string) {
	sv, ok := m.vests[key]
	if !ok {
		return
	}
	sv.State = Cancelled
	m.triggers.Remove(triggerName(key))
	delete(m.vests, key)
	m.log.Info().Str("vest", key).Msg("vest cancelled")
}

// Snapshot returns a copy of the current vest records (for status/tests).
func (m *Manager) Snapshot() []ScheduledVest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ScheduledVest, 0, len(m.vests))
	for _, sv := range m.vests {
		out = append(out, *sv)
	}
	return out
}

func triggerName(key string) string { return "vest:" + key }
