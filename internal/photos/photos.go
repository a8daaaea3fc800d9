// Package photos stores product pictures on the local filesystem.
package photos

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("unsupported photo type")

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

type Store struct {
	dir string
}

// New returns a store rooted at dir, creating the directory when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the upload as <dir>/<productID>_<filename> and returns that path.
// An existing file with the same name is replaced.
func (s *Store) Save(productID string, filename string, r io.Reader) (string, error) {
	base := filepath.Base(filename)
	if !allowedExtensions[strings.ToLower(filepath.Ext(base))] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(base))
	}
	if productID == "" || strings.ContainsAny(productID, `/\`) || strings.Contains(productID, "..") {
		return "", fmt.Errorf("invalid product id for photo: %q", productID)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	dest := filepath.Join(s.dir, productID+"_"+base)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	log.Printf("[photos] saved %s", dest)
	return dest, nil
}

// Owns reports whether path is a file Save wrote for productID.
func (s *Store) Owns(productID string, path string) bool {
	if productID == "" || path == "" || filepath.Dir(path) != filepath.Clean(s.dir) {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), productID+"_")
}

// Remove deletes a stored photo. Failures are logged, never returned, and
// paths outside the photo directory are ignored.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		log.Printf("[photos] WARN: refusing to remove %s outside %s", path, s.dir)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[photos] WARN: failed to remove %s: %v", path, err)
	}
}
