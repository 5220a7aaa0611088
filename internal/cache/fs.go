package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/assetgrabber/assetgrabber/internal/common"
)

// Dir is a filesystem-backed Store rooted at a data directory. Keys map to
// relative file paths; parent directories are created on Put.
type Dir struct {
	root string
}

// NewDir creates the root directory if needed and returns a store over it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// Root returns the store's base directory.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *Dir) Get(key string) ([]byte, time.Time, error) {
	p := d.path(key)
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, common.ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", p, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", p, err)
	}
	return data, fi.ModTime(), nil
}

func (d *Dir) Put(key string, data []byte) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0o664); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
