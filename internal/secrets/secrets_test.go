package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, NameAPIUserToken), []byte("tok-123\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	src, err := NewFileSource(dir)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	v, err := src.Fetch(context.Background(), NameAPIUserToken)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if v != "tok-123" {
		t.Fatalf("value = %q (whitespace must be trimmed)", v)
	}

	if _, err := src.Fetch(context.Background(), NameAPISignerKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing secret err = %v, want ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), "../etc/passwd"); err == nil {
		t.Fatal("expected error for path-like secret name")
	}
}

func TestNewFileSourceValidatesDir(t *testing.T) {
	t.Parallel()
	if _, err := NewFileSource(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("VESTD_FORDEFI_API_USER_TOKEN", "env-tok")

	src, err := NewEnvSource()
	if err != nil {
		t.Fatalf("NewEnvSource: %v", err)
	}
	v, err := src.Fetch(context.Background(), NameAPIUserToken)
	if err != nil || v != "env-tok" {
		t.Fatalf("Fetch = %q, %v", v, err)
	}

	// Unset optional secrets stay optional: ErrNotFound, not a hard failure.
	if _, err := src.Fetch(context.Background(), NameBotToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), "SOMETHING_ELSE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

type countingSource struct {
	calls int
}

func (c *countingSource) Fetch(_ context.Context, name string) (string, error) {
	c.calls++
	if name == "missing" {
		return "", ErrNotFound
	}
	return "value-" + name, nil
}

func TestCachedMemoizes(t *testing.T) {
	t.Parallel()
	under := &countingSource{}
	c := &Cached{src: under, values: map[string]string{}}

	for i := 0; i < 3; i++ {
		v, err := c.Fetch(context.Background(), "a")
		if err != nil || v != "value-a" {
			t.Fatalf("Fetch = %q, %v", v, err)
		}
	}
	if under.calls != 1 {
		t.Fatalf("underlying calls = %d, want 1", under.calls)
	}

	// Failures are not cached; a later retry hits the source again.
	if _, err := c.Fetch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.Fetch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if under.calls != 3 {
		t.Fatalf("underlying calls = %d, want 3", under.calls)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open("gcp", ""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
