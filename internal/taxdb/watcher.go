package taxdb

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const settleDelay = 200 * time.Millisecond

// ChangeCallback is called once a burst of writes to the database file settles.
type ChangeCallback func(path string)

// Watch observes the directory holding the database at dbPath and calls cb
// after the file (or its journal) is written, replaced or removed, until ctx
// is cancelled. Bursts of events are coalesced into a single callback.
//
// The parent directory is watched rather than the file itself so that a
// dump replaced by rename is still noticed.
func Watch(ctx context.Context, dbPath string, logger *slog.Logger, cb ChangeCallback) error {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", abs))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleTimer = nil
			settleCh = nil
			logger.Info("watcher: taxonomy database changed", slog.String("path", abs))
			if cb != nil {
				cb(abs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDBFile(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// isDBFile matches the database file and its SQLite side files.
func isDBFile(name, base string) bool {
	switch name {
	case base, base + "-journal", base + "-wal":
		return true
	}
	return false
}
