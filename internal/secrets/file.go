package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource serves one secret per file under a directory. Works directly
// with systemd credentials: secrets.dir can point at $CREDENTIALS_DIRECTORY.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) (*FileSource, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("secrets.dir is required for the file driver")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir %q is not a directory", dir)
	}
	return &FileSource{dir: dir}, nil
}

func (f *FileSource) Fetch(_ context.Context, name string) (string, error) {
	// Secret names are fixed constants, but never trust them as paths.
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
