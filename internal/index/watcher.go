package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, key plan.Key)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the daily-notes directory and keeps the
// index current until ctx is cancelled. It calls cb (if non-nil) after each
// index mutation, so edits made outside the service (an editor, a sync
// client) reach subscribers too.
//
// New directories created at runtime are added to the watch list. Rename
// events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db PlanIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	root := store.DailyRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	notify := func(kind string, key plan.Key) {
		if cb != nil {
			cb(kind, key)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Notes may have landed before the watch was added.
					scheduleReconcile()
					continue
				}
			}

			key, ok := store.KeyForPath(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(key)
				if readErr != nil {
					if !errors.Is(readErr, apperr.ErrNotFound) {
						logger.Warn("watcher: read failed", slog.String("date", key.String()), slog.String("error", readErr.Error()))
					}
					continue
				}
				_, getErr := db.GetPlan(key)
				if idxErr := IndexNote(db, key, ev.Name, data, time.Now()); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("date", key.String()), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if errors.Is(getErr, apperr.ErrNotFound) {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("date", key.String()), slog.String("op", kind))
				notify(kind, key)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeletePlan(key); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("date", key.String()), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("date", key.String()))
				notify("deleted", key)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new one arrives
				// as a Create if it stays inside a watched directory.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index rows whose note is gone and indexes notes that are
// new or changed on disk.
func reconcile(db PlanIndex, store storage.Provider, logger *slog.Logger, notify EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	entries, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[plan.Key]storage.Entry, len(entries))
	for _, e := range entries {
		disk[e.Key] = e
	}

	for key := range checksums {
		if _, ok := disk[key]; ok {
			continue
		}
		if delErr := db.DeletePlan(key); delErr == nil {
			logger.Debug("reconcile: removed stale", slog.String("date", key.String()))
			notify("deleted", key)
		}
	}

	for key, e := range disk {
		old, known := checksums[key]
		if known && old == e.Checksum {
			continue
		}
		data, readErr := store.Read(key)
		if readErr != nil {
			continue
		}
		if idxErr := IndexNote(db, key, e.Path, data, e.UpdatedAt); idxErr == nil {
			kind := "updated"
			if !known {
				kind = "created"
			}
			logger.Debug("reconcile: indexed", slog.String("date", key.String()), slog.String("op", kind))
			notify(kind, key)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
