package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Disk keeps images in a local directory served under /uploads/.
type Disk struct {
	Dir     string
	BaseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Put(ctx context.Context, key, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := key + ext
	if err := os.WriteFile(filepath.Join(d.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return d.BaseURL + "/uploads/" + name, nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(d.Dir, key+".*"))
	if err != nil {
		return err
	}
	if exact := filepath.Join(d.Dir, key); fileExists(exact) {
		matches = append(matches, exact)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no file stored under key %q", key)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
