package taxdb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcher_ReplaceTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "taxa.sqlite")
	_ = os.WriteFile(dbPath, []byte("v1"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, dbPath, quietLogger(), func(string) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, "taxa.sqlite.tmp")
	_ = os.WriteFile(tmp, []byte("v2"), 0o644)
	_ = os.Rename(tmp, dbPath)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() > 0
	}, "replace did not trigger callback")
}

func TestWatcher_BurstIsCoalesced(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "taxa.sqlite")
	_ = os.WriteFile(dbPath, []byte("v1"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, dbPath, quietLogger(), func(string) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	for i := range 5 {
		_ = os.WriteFile(dbPath, []byte{byte(i)}, 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() > 0
	}, "writes did not trigger callback")
	time.Sleep(2 * settleDelay)
	if n := calls.Load(); n != 1 {
		t.Errorf("callbacks = %d, want 1", n)
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "taxa.sqlite")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, dbPath, quietLogger(), func(string) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	time.Sleep(3 * settleDelay)
	if n := calls.Load(); n != 0 {
		t.Errorf("callbacks = %d, want 0", n)
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, filepath.Join(dir, "taxa.sqlite"), quietLogger(), nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIsDBFile(t *testing.T) {
	cases := map[string]bool{
		"taxa.sqlite":         true,
		"taxa.sqlite-journal": true,
		"taxa.sqlite-wal":     true,
		"taxa.sqlite.bak":     false,
		"other.sqlite":        false,
	}
	for name, want := range cases {
		if got := isDBFile(name, "taxa.sqlite"); got != want {
			t.Errorf("isDBFile(%q) = %v, want %v", name, got, want)
		}
	}
}
