// Package secrets abstracts "fetch named secret version" so the engine never
// reads key material from its config file.
//
// Two drivers ship: env (variables with a VESTD_ prefix, loaded through
// envconfig) and file (one file per secret under a directory, which lines up
// with systemd's LoadCredential= / $CREDENTIALS_DIRECTORY). A retrieval
// failure at startup is fatal to the process; it is never retried silently.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Canonical secret names used by vestd.
const (
	NameAPIUserToken = "FORDEFI_API_USER_TOKEN" // bearer token for the transactions API
	NameAPISignerKey = "FORDEFI_API_SIGNER_KEY" // ECDSA private key, PEM
	NameBotToken     = "TELEGRAM_BOT_TOKEN"     // optional, notify service only
)

var ErrNotFound = errors.New("secret not found")

// Source fetches one named secret as UTF-8 text.
type Source interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Open builds the configured source, wrapped in a per-process cache.
// Driver values: "env" (default) or "file".
func Open(driver, dir string) (Source, error) {
	var (
		src Source
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "env":
		src, err = NewEnvSource()
	case "file":
		src, err = NewFileSource(dir)
	default:
		return nil, fmt.Errorf("unknown secrets driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return &Cached{src: src, values: map[string]string{}}, nil
}

// Cached memoizes fetches for the process lifetime. The signing key and
// bearer token are read-only after retrieval and shared across all jobs.
type Cached struct {
	src Source

	mu     sync.Mutex
	values map[string]string
}

func (c *Cached) Fetch(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if v, ok := c.values[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.src.Fetch(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}
