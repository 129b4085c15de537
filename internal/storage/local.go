package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalStore keeps files under a directory on disk. The server exposes the
// directory read-only under urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: urlPrefix, now: time.Now}, nil
}

// Dir is the root directory of the store.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	key := objectKey("", name, s.now())
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("close file: %w", err)
	}
	return key, nil
}

func (s *LocalStore) URL(ctx context.Context, ref string) (string, error) {
	key, err := cleanRef(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(key))); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return s.urlPrefix + "/" + key, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
