package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/taxonid/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func read(t *testing.T, s *FS, rel string) string {
	t.Helper()
	abs, err := s.Resolve(rel)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestWriteFromAndRead(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteFrom("taxon_set.txt", strings.NewReader("marker data\n"), 0o644); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	if got := read(t, s, "taxon_set.txt"); got != "marker data\n" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteFromCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteFrom("hmms/a/b.hmm", strings.NewReader("deep"), 0o644); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	if got := read(t, s, "hmms/a/b.hmm"); got != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteFromAppliesMode(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteFrom("bin/run.sh", strings.NewReader("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	abs, _ := s.Resolve("bin/run.sh")
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestMkdirAllAndExists(t *testing.T) {
	s := tempRoot(t)
	if s.Exists("genome_tree") {
		t.Fatal("dir should not exist yet")
	}
	if err := s.MkdirAll("genome_tree/nested", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if !s.Exists("genome_tree/nested") {
		t.Error("dir should exist")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"a/../../outside.txt",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Resolve(p); !errors.Is(err, apperr.ErrPathTraversal) {
			t.Errorf("Resolve(%q) err = %v, want ErrPathTraversal", p, err)
		}
		if err := s.WriteFrom(p, strings.NewReader("x"), 0o644); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if err := s.MkdirAll(p, 0o755); err == nil {
			t.Errorf("expected error for mkdir %q", p)
		}
	}
}

func TestSymlink(t *testing.T) {
	s := tempRoot(t)
	_ = s.WriteFrom("data/real.txt", strings.NewReader("x"), 0o644)

	if err := s.Symlink("real.txt", "data/alias.txt"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if got := read(t, s, "data/alias.txt"); got != "x" {
		t.Errorf("content via link = %q", got)
	}

	for _, target := range []string{"../../outside", "/etc/passwd"} {
		if err := s.Symlink(target, "data/bad"); !errors.Is(err, apperr.ErrPathTraversal) {
			t.Errorf("Symlink(%q) err = %v, want ErrPathTraversal", target, err)
		}
	}
	if s.Exists("data/bad") {
		t.Error("rejected link was created")
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_ = s.WriteFrom("atomic.txt", strings.NewReader("original content"), 0o644)
	if err := s.WriteFrom("atomic.txt", strings.NewReader("updated content"), 0o644); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	if got := read(t, s, "atomic.txt"); got != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".taxonid-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/taxonid-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "taxonid-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWriteThroughSymlinkOutOfRootBlocked(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	// A link left on disk whose target is outside the root.
	if err := os.Symlink(parent, filepath.Join(root, "up")); err != nil {
		t.Fatal(err)
	}

	if err := s.WriteFrom("up/evil.txt", strings.NewReader("x"), 0o644); !errors.Is(err, apperr.ErrPathTraversal) {
		t.Errorf("WriteFrom err = %v, want ErrPathTraversal", err)
	}
	if err := s.MkdirAll("up/dir", 0o755); !errors.Is(err, apperr.ErrPathTraversal) {
		t.Errorf("MkdirAll err = %v, want ErrPathTraversal", err)
	}
	if err := s.Symlink("x", "up/link"); !errors.Is(err, apperr.ErrPathTraversal) {
		t.Errorf("Symlink err = %v, want ErrPathTraversal", err)
	}
	for _, name := range []string{"evil.txt", "dir", "link"} {
		if _, err := os.Lstat(filepath.Join(parent, name)); err == nil {
			t.Errorf("%s was created outside the root", name)
		}
	}
}

func TestWriteThroughSymlinkInsideRoot(t *testing.T) {
	s := tempRoot(t)
	if err := s.MkdirAll("real", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Symlink("real", "alias"); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := s.WriteFrom("alias/f.txt", strings.NewReader("ok"), 0o644); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	if got := read(t, s, "real/f.txt"); got != "ok" {
		t.Errorf("content = %q", got)
	}
}
