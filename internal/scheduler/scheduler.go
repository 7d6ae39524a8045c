// Package scheduler wraps robfig/cron with named, upsertable triggers and a
// single-worker execution queue.
//
// The single worker is deliberate: vesting volume is one custody call per
// asset per day, and the engine's concurrency model is a cooperative loop
// where each due job runs to completion before the next. Scaling beyond that
// means moving executions onto independent workers, not widening this pool.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is an alias so callers can hand in plain funcs and interfaces over this
// package keep identical method signatures.
type Job = func(ctx context.Context) error

type triggerDef struct {
	name    string
	spec    string // 5-field cron spec or "@every ..."
	job     Job
	entryID cron.EntryID
}

type task struct {
	name string
	run  Job
}

// Service owns the cron runtime and the execution queue. Triggers are keyed
// by name; registering an existing name replaces the previous trigger.
type Service struct {
	mu   sync.Mutex
	log  zerolog.Logger
	loc  *time.Location
	c    *cron.Cron
	defs []triggerDef

	queue    chan task
	stopCh   chan struct{}
	workerWG sync.WaitGroup
}

func New(loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{log: log, loc: loc}
}

// Location returns the wall-clock location daily triggers anchor to.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// AddInterval registers (or replaces) a fixed-interval trigger.
func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return s.add(name, fmt.Sprintf("@every %s", every), job)
}

// AddDaily registers (or replaces) a trigger firing every day at the given
// local wall-clock time. Anchoring to the location's wall clock (not a fixed
// 24h duration) keeps the firing time stable across DST transitions.
func (s *Service) AddDaily(name string, hour, minute int, job Job) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}
	return s.add(name, fmt.Sprintf("%d %d * * *", minute, hour), job)
}

func (s *Service) add(name, spec string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("trigger name required")
	}
	if job == nil {
		return fmt.Errorf("trigger job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert by name so re-arming a vest never leaves two live triggers.
	s.removeLocked(name)

	s.defs = append(s.defs, triggerDef{name: name, spec: spec, job: job})
	d := &s.defs[len(s.defs)-1]
	if s.c != nil {
		if err := s.registerLocked(d); err != nil {
			s.defs = s.defs[:len(s.defs)-1]
			return err
		}
	}
	s.log.Debug().Str("trigger", name).Str("spec", spec).Msg("trigger registered")
	return nil
}

// Remove unregisters the named trigger. Returns true if one existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(name)
	if removed {
		s.log.Debug().Str("trigger", name).Msg("trigger removed")
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) registerLocked(d *triggerDef) error {
	name := d.name
	job := d.job
	eid, err := s.c.AddFunc(d.spec, func() {
		s.enqueue(task{name: name, run: job})
	})
	if err != nil {
		return fmt.Errorf("register trigger %s: %w", name, err)
	}
	d.entryID = eid
	return nil
}

// Start launches the cron runtime and the worker. Triggers registered
// beforehand are picked up.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan task, 64)
	s.c = cron.New(cron.WithLocation(s.loc))
	for i := range s.defs {
		if err := s.registerLocked(&s.defs[i]); err != nil {
			s.log.Error().Err(err).Str("trigger", s.defs[i].name).Msg("trigger registration failed")
		}
	}

	stopCh := s.stopCh
	queue := s.queue
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.worker(ctx, stopCh, queue)
	}()

	s.c.Start()
	s.log.Info().Str("tz", s.loc.String()).Int("triggers", len(s.defs)).Msg("scheduler started")
}

// Stop halts the cron runtime, lets an in-flight job finish, and waits up to
// ctx for the worker to exit.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	c := s.c
	s.stopCh = nil
	s.c = nil
	s.queue = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()

	close(stopCh)
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out; worker finishing in background")
	}
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case q <- t:
	default:
		// A full queue means something upstream is stuck; dropping a tick
		// is safe (the job fires late on a later tick, never twice).
		s.log.Warn().Str("trigger", t.name).Msg("scheduler queue full; dropping tick")
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.runOne(ctx, t)
		}
	}
}

func (s *Service) runOne(ctx context.Context, t task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("trigger", t.name).Any("panic", r).
				Str("stack", string(debug.Stack())).Msg("panic in scheduled job")
		}
	}()
	if err := t.run(ctx); err != nil {
		s.log.Warn().Err(err).Str("trigger", t.name).Dur("took", time.Since(start)).Msg("scheduled job failed")
	}
}
