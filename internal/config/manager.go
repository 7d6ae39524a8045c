package config

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Manager owns the committed config and re-reads the file on change.
//
// Watch() publishes every committed update to subscribers; a parse or
// validation failure keeps the previous config in place (transactional
// reloads, the running schedule is never poisoned by a half-written file).
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	subsMu sync.Mutex
	subs   []chan *Config

	log zerolog.Logger

	// lastHash tracks the last committed content so editor-induced
	// duplicate write events don't re-publish an unchanged config.
	lastHash uint64
}

func NewManager(path string, log zerolog.Logger) *Manager {
	return &Manager{path: path, log: log}
}

// Load parses, validates and commits the file. Used at startup where any
// error is fatal.
func (m *Manager) Load() (*Config, error) {
	cfg, err := ParseFile(m.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Subscribe returns a channel receiving each committed config update.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
		default:
			// Drop the oldest pending update, then deliver the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
				m.log.Debug().Msg("config update dropped (subscriber slow)")
			}
		}
	}
}

// Watch blocks until ctx is done, reloading the file on filesystem events.
// Events are debounced so partial editor writes are not parsed.
func (m *Manager) Watch(ctx context.Context) error {
	const (
		debounceDelay = 250 * time.Millisecond
		retryDelay    = 2 * time.Second
	)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		cfg, err := ParseFile(m.path)
		if err != nil {
			m.log.Warn().Err(err).Str("path", m.path).Msg("config reload parse failed; keeping previous config")
			return
		}
		h := hashConfig(cfg)
		m.mu.RLock()
		unchanged := h != 0 && h == m.lastHash
		m.mu.RUnlock()
		if unchanged {
			m.log.Debug().Str("path", m.path).Msg("config unchanged; skipping reload")
			return
		}
		if err := cfg.Validate(); err != nil {
			m.log.Warn().Err(err).Str("path", m.path).Msg("config rejected; keeping previous config")
			return
		}
		m.commit(cfg)
		m.publish(cfg)
		m.log.Info().Str("path", m.path).Msg("config reloaded")
	}
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, reload)
	}

	// The watcher is recreated if it errors out (some editors/filesystems
	// leave fsnotify in a dead state after rename-based saves).
	for {
		if ctx.Err() != nil {
			return nil
		}
		w, err := fsnotify.NewWatcher()
		if err == nil {
			// Watch the directory: editors typically replace the file,
			// which would invalidate a file-level watch.
			err = w.Add(dirOf(m.path))
		}
		if err != nil {
			if w != nil {
				_ = w.Close()
			}
			m.log.Warn().Err(err).Msg("config watch unavailable; retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
				continue
			}
		}

		if !m.watchLoop(ctx, w, schedule) {
			_ = w.Close()
			return nil
		}
		_ = w.Close()
	}
}

// watchLoop returns false when ctx ended, true when the watcher needs to be
// recreated.
func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, schedule func()) bool {
	base := baseOf(m.path)
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true
			}
			if baseOf(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true
			}
			m.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func dirOf(p string) string  { return filepath.Dir(p) }
func baseOf(p string) string { return filepath.Base(p) }

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
