package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/taxonid/internal/apperr"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root     string // absolute path to the root directory
	realRoot string // root with symlinks evaluated
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &FS{root: abs, realRoot: realRoot}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string {
	return f.root
}

// Resolve resolves a relative path against the root and rejects any result
// that escapes it.
func (f *FS) Resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute path %s: %w", rel, apperr.ErrPathTraversal)
	}
	return f.within(filepath.Join(f.root, cleaned), rel)
}

func (f *FS) within(abs, rel string) (string, error) {
	abs, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %s escapes root: %w", rel, apperr.ErrPathTraversal)
	}
	return abs, nil
}

// followLinks rejects abs when its deepest existing ancestor, with symlinks
// on disk evaluated, lies outside the root.
func (f *FS) followLinks(abs, rel string) error {
	dir := abs
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			if resolved != f.realRoot && !strings.HasPrefix(resolved, f.realRoot+string(os.PathSeparator)) {
				return fmt.Errorf("storage: %s escapes root through a symlink: %w", rel, apperr.ErrPathTraversal)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: resolve %s: %w", rel, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// MkdirAll creates a directory (and parents) under the root.
func (f *FS) MkdirAll(rel string, perm fs.FileMode) error {
	abs, err := f.Resolve(rel)
	if err != nil {
		return err
	}
	if err := f.followLinks(abs, rel); err != nil {
		return err
	}
	if err := os.MkdirAll(abs, perm|0o700); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", rel, err)
	}
	return nil
}

// WriteFrom atomically writes content: tmp file → fsync → rename.
func (f *FS) WriteFrom(rel string, r io.Reader, perm fs.FileMode) error {
	abs, err := f.Resolve(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := f.followLinks(dir, rel); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".taxonid-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if perm != 0 {
		if err := os.Chmod(tmpName, perm); err != nil {
			return fmt.Errorf("storage: chmod: %w", err)
		}
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Symlink creates a symbolic link at rel. Relative targets are resolved
// against the link's directory and must stay under the root.
func (f *FS) Symlink(target, rel string) error {
	abs, err := f.Resolve(rel)
	if err != nil {
		return err
	}
	if err := f.CheckLinkTarget(target, rel); err != nil {
		return err
	}
	if err := f.followLinks(filepath.Dir(abs), rel); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	_ = os.Remove(abs)
	if err := os.Symlink(target, abs); err != nil {
		return fmt.Errorf("storage: symlink %s: %w", rel, err)
	}
	return nil
}

// CheckLinkTarget verifies that a link at rel pointing to target would not
// leave the root.
func (f *FS) CheckLinkTarget(target, rel string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("storage: link %s to absolute %s: %w", rel, target, apperr.ErrPathTraversal)
	}
	abs, err := f.Resolve(rel)
	if err != nil {
		return err
	}
	_, err = f.within(filepath.Join(filepath.Dir(abs), filepath.FromSlash(target)), rel+" -> "+target)
	return err
}

// Exists reports whether rel exists under the root.
func (f *FS) Exists(rel string) bool {
	abs, err := f.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Lstat(abs)
	return err == nil
}
