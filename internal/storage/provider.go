// Package storage confines file system writes to a single root directory.
package storage

import (
	"io"
	"io/fs"
)

// Provider writes files under a root directory. Every path is relative to
// that root; paths resolving outside it are rejected with apperr.ErrPathTraversal.
type Provider interface {
	// Resolve returns the absolute path of rel, refusing escapes.
	Resolve(rel string) (string, error)
	// MkdirAll creates the directory rel and any missing parents.
	MkdirAll(rel string, perm fs.FileMode) error
	// WriteFrom atomically writes the contents of r to rel.
	WriteFrom(rel string, r io.Reader, perm fs.FileMode) error
	// Symlink creates rel pointing at target; target must stay inside the root.
	Symlink(target, rel string) error
	// CheckLinkTarget validates a link without creating it.
	CheckLinkTarget(target, rel string) error
	// Exists reports whether rel exists.
	Exists(rel string) bool
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
