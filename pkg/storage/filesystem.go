package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dirPerm     = 0o755
	tempPattern = ".partial-*"
)

// LocalStorage keeps rendered report files under one root directory. Names
// passed to its methods are relative to that root and may contain subdirectories.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates dir if needed. An empty dir means ./exports.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "./exports"
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage root %q: %w", dir, err)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("storage root %q: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

// Save stores data under name and returns name. The file appears atomically.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	target, err := s.locate(name)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(target, data); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return name, nil
}

func writeAtomic(target string, data []byte) (err error) {
	dir := filepath.Dir(target)
	if err = os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Open returns the stored file for reading. The caller closes it.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	target, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Delete removes name. A missing file is not an error.
func (s *LocalStorage) Delete(name string) error {
	target, err := s.locate(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// CleanupOlderThan deletes files last modified more than maxAge ago and
// returns their names, sorted.
func (s *LocalStorage) CleanupOlderThan(maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed []string
	walkErr := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		rel, _ := filepath.Rel(s.root, path)
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return removed, fmt.Errorf("cleanup %s: %w", s.root, walkErr)
	}
	sort.Strings(removed)
	return removed, nil
}

// Path returns the absolute location of name, or "" if name is not storable.
func (s *LocalStorage) Path(name string) string {
	target, err := s.locate(name)
	if err != nil {
		return ""
	}
	return target
}

func (s *LocalStorage) locate(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	target := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage name %q escapes %s", name, s.root)
	}
	return target, nil
}
