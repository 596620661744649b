package quarantine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store keeps uploaded payment evidence isolated until the owning order is
// resolved. Quarantine state is directory membership: a file lives under the
// quarantine root until Release moves it to the released root or Delete
// removes it. There is no database row for it.
type Store struct {
	root         string
	releasedRoot string
}

func NewStore(root, releasedRoot string) (*Store, error) {
	for _, dir := range []string{root, releasedRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return &Store{root: root, releasedRoot: releasedRoot}, nil
}

// Save writes evidence bytes into quarantine and returns the relative path to
// store on the order.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate evidence name: %w", err)
	}
	name := hex.EncodeToString(buf) + ext

	abs, err := s.resolve(s.root, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write quarantined file: %w", err)
	}
	return name, nil
}

// Release promotes a quarantined file to the permanent area. Releasing an
// already-released path is a no-op.
func (s *Store) Release(rel string) error {
	src, err := s.resolve(s.root, rel)
	if err != nil {
		return err
	}
	dst, err := s.resolve(s.releasedRoot, rel)
	if err != nil {
		return err
	}

	if _, err := os.Stat(src); os.IsNotExist(err) {
		if _, err := os.Stat(dst); err == nil {
			return nil // already released
		}
		return fmt.Errorf("quarantined file not found: %s", rel)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("release quarantined file: %w", err)
	}
	return nil
}

// Delete purges a quarantined file. Deleting a missing path is a no-op.
func (s *Store) Delete(rel string) error {
	abs, err := s.resolve(s.root, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete quarantined file: %w", err)
	}
	return nil
}

// Orphans lists quarantined files older than maxAge, for reaper garbage
// collection of evidence whose order never resolved.
func (s *Store) Orphans(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read quarantine root: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// resolve joins rel under base and verifies the result stays inside base.
// Any path escaping the root fails before a single filesystem operation runs.
func (s *Store) resolve(base, rel string) (string, error) {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(baseAbs, rel))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if abs != baseAbs && !strings.HasPrefix(abs, baseAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal rejected: %s", rel)
	}
	if abs == baseAbs {
		return "", fmt.Errorf("path traversal rejected: %s", rel)
	}
	return abs, nil
}
