// Package storage is the file-storage collaborator: it keeps uploaded
// binaries and hands back a stable reference string. Callers never look
// inside the files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bastportal/internal/config"

	"github.com/google/uuid"
)

// ErrInvalidReference is returned for a reference this store did not issue.
var ErrInvalidReference = errors.New("invalid file reference")

// FileStore keeps uploaded files.
type FileStore interface {
	// Save stores r under a fresh key derived from name and returns the
	// reference to persist.
	Save(ctx context.Context, name string, r io.Reader, contentType string) (string, error)
	// URL returns a download link for ref.
	URL(ctx context.Context, ref string) (string, error)
}

// New builds the store selected by cfg.Driver.
func New(cfg config.StorageConfig) (FileStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, "/files")
	case "oss":
		return NewOSSStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectKey builds "<prefix>/<yyyy>/<mm>/<uuid>_<slug><ext>".
func objectKey(prefix, name string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := slugify(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	if base == "" {
		base = "file"
	}
	file := fmt.Sprintf("%s_%s%s", uuid.NewString(), base, ext)
	return path.Join(strings.Trim(prefix, "/"), now.Format("2006"), now.Format("01"), file)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ' || r == '_' || r == '.':
			return '-'
		default:
			return -1
		}
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// cleanRef rejects references that could escape the store root.
func cleanRef(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "\\") {
		return "", ErrInvalidReference
	}
	clean := path.Clean(ref)
	if clean != ref || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidReference
	}
	return clean, nil
}
