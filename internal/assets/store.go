// Package assets manages the flat-file asset directories that hold generated
// audio and video and the temporary inputs used to produce them.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Static mounts the asset directories are served under.
const (
	AudioMount = "/audio-assets"
	VideoMount = "/video-assets"
)

var (
	ErrNotExist          = errors.New("file does not exist")
	ErrExtensionRejected = errors.New("file extension not allowed")
)

// Store is one asset directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: filepath.Clean(dir), logger: logger}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the directory if it is missing.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("Failed to create directory", zap.String("dir", s.dir), zap.Error(err))
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	return nil
}

// Path joins name onto the store directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stores data under name and returns the full path.
func (s *Store) Write(name string, data []byte) (string, error) {
	p := s.Path(name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	return p, nil
}

// Remove deletes p. A file that is already gone is not an error.
func (s *Store) Remove(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Contains reports whether p resolves to a location inside the store.
func (s *Store) Contains(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// URL returns the static URL for p under mount, e.g. "/video-assets/x.mp4".
func (s *Store) URL(mount, p string) string {
	return path.Join(mount, filepath.Base(p))
}

// Exists reports whether p names an existing regular file.
func Exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// ValidateFile checks that p exists and, when allowed is non-empty, that its
// extension (case-insensitive, without the dot) is in allowed.
func ValidateFile(p string, allowed ...string) error {
	if !Exists(p) {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	if len(allowed) == 0 {
		return nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %q, allowed %v", ErrExtensionRejected, ext, allowed)
}
