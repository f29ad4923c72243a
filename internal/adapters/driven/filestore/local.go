// Package filestore serves stored source files from local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.FileStore = (*Local)(nil)

// Local stores files under a root directory laid out as
// <projectID>/<uuid>_<sanitized name>. Paths are always relative to the
// root and cannot escape it.
type Local struct {
	root *os.Root
}

// NewLocal opens (creating if needed) the storage root.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: storage root is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// Open returns the file at a root-relative path.
func (l *Local) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := l.root.Open(cleanRel(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// Put copies r into the project's directory and returns the stored
// root-relative path and the number of bytes written.
func (l *Local) Put(_ context.Context, projectID, name string, r io.Reader) (string, int64, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == ".." {
		return "", 0, fmt.Errorf("%w: invalid project id %q", domain.ErrInvalidInput, projectID)
	}
	if err := l.root.Mkdir(projectID, 0o750); err != nil && !errors.Is(err, fs.ErrExist) {
		return "", 0, fmt.Errorf("create project dir: %w", err)
	}

	rel := path.Join(projectID, uuid.NewString()+"_"+SafeName(name))
	f, err := l.root.OpenFile(rel, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", rel, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.root.Remove(rel)
		return "", 0, fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, n, nil
}

// Close releases the root handle.
func (l *Local) Close() error {
	return l.root.Close()
}

// SafeName keeps letters, digits, dot, dash and underscore; everything
// else becomes an underscore.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func cleanRel(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
}
