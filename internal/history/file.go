package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fileStore is the dependency-free driver: one JSON object per line,
// rewritten in place on prune.
type fileStore struct {
	mu       sync.Mutex
	path     string
	log      zerolog.Logger
	keep     time.Duration
	appends  uint64
	pruneEvr uint64
}

func openFile(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{
		path:     cfg.Path,
		log:      log,
		keep:     time.Duration(cfg.KeepDays) * 24 * time.Hour,
		pruneEvr: 200,
	}, nil
}

func (s *fileStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(append(b, '\n'))
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}

	s.appends++
	if s.appends%s.pruneEvr == 0 {
		if err := s.pruneLocked(); err != nil {
			s.log.Warn().Err(err).Msg("history prune failed")
		}
	}
	return nil
}

func (s *fileStore) Recent(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) readAllLocked() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			// Skip corrupt lines rather than losing the whole file.
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

func (s *fileStore) pruneLocked() error {
	all, err := s.readAllLocked()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-s.keep)
	kept := all[:0]
	for _, r := range all {
		if r.At.After(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(all) {
		return nil
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, r := range kept {
		b, err := json.Marshal(r)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
