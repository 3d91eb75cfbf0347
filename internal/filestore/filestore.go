package filestore

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
)

// ErrOutsideRoot is returned for references that resolve outside the root.
var ErrOutsideRoot = errors.New("attachment path escapes storage root")

// FileStore owns attachment files.
type FileStore interface {
	Open(ref model.Attachment) (io.ReadCloser, error)
	Delete(refs []model.Attachment)
}

// Local keeps attachments on the local disk under a root directory.
type Local struct {
	root string
}

// NewLocal creates a disk-backed file store.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Open opens the file behind ref for reading.
func (l *Local) Open(ref model.Attachment) (io.ReadCloser, error) {
	path, err := l.resolve(ref.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment %s: %w", ref.Name, err)
	}
	return f, nil
}

// Delete removes the files behind refs. Failures are logged; a missing file
// counts as already deleted.
func (l *Local) Delete(refs []model.Attachment) {
	for _, ref := range refs {
		path, err := l.resolve(ref.Path)
		if err != nil {
			log.Printf("Refusing to delete attachment %q: %v", ref.Path, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to delete attachment %s: %v", path, err)
		}
	}
}

// resolve maps a stored path (relative to the root, or absolute inside it)
// to a path on disk.
func (l *Local) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty attachment path")
	}
	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", err
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, p)
	}
	full = filepath.Clean(full)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// Removed returns the refs in before that are missing from after.
func Removed(before, after []model.Attachment) []model.Attachment {
	keep := make(map[string]struct{}, len(after))
	for _, a := range after {
		keep[a.Path] = struct{}{}
	}
	var out []model.Attachment
	for _, b := range before {
		if _, ok := keep[b.Path]; !ok {
			out = append(out, b)
		}
	}
	return out
}
