// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAmbiguous     = errors.New("ambiguous")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPathTraversal = errors.New("path traversal")
)
