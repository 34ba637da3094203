package index

import (
	"log/slog"
	"time"

	"github.com/starford/planpanel/internal/checklist"
	"github.com/starford/planpanel/internal/checksum"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/plansection"
	"github.com/starford/planpanel/internal/storage"
)

// Sync walks the daily notes and brings the index up to date:
//   - new/changed notes have their plan section re-indexed
//   - notes removed from disk are deleted from the index
func Sync(db PlanIndex, store storage.Provider, logger *slog.Logger) error {
	entries, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[plan.Key]struct{}, len(entries))
	for _, e := range entries {
		disk[e.Key] = struct{}{}

		if checksums[e.Key] == e.Checksum {
			continue
		}

		data, err := store.Read(e.Key)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("date", e.Key.String()), slog.String("error", err.Error()))
			continue
		}
		if err := IndexNote(db, e.Key, e.Path, data, e.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("date", e.Key.String()), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("date", e.Key.String()))
		}
	}

	for key := range checksums {
		if _, ok := disk[key]; !ok {
			if err := db.DeletePlan(key); err != nil {
				logger.Warn("sync: delete failed", slog.String("date", key.String()), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("date", key.String()))
			}
		}
	}

	return nil
}

// IndexNote extracts the plan section of a daily note and upserts it.
func IndexNote(db PlanIndex, key plan.Key, path string, data []byte, at time.Time) error {
	content := plansection.Extract(string(data))
	done, total := checklist.Progress(content)
	if at.IsZero() {
		at = time.Now()
	}
	return db.UpsertPlan(PlanRow{
		Key:       key,
		Path:      path,
		Checksum:  checksum.Sum(data),
		Content:   content,
		Done:      done,
		Total:     total,
		UpdatedAt: at,
	})
}
