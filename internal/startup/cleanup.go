// Package startup provides recovery passes run before a new invocation
// accepts work: journal records left IN_PROGRESS by a dead process are
// failed, and temporary files left behind by interrupted atomic writes
// are removed.
package startup

import (
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

// RecoveryMessage is recorded on journal records failed by recovery.
const RecoveryMessage = "interrupted by restart"

// RecoverStaleItems marks journal records stuck IN_PROGRESS as failed.
// A record is only IN_PROGRESS while a worker owns it, so finding one at
// startup means the owning process died mid-attempt. The items stay
// eligible for retry on their next stage.
//
// Returns the number of records recovered.
func RecoverStaleItems(logger *slog.Logger, j *journal.Journal) (int, error) {
	var recovered int
	for _, state := range j.All() {
		if state.Status != models.StatusInProgress {
			continue
		}

		stage := ""
		if state.NextStage != nil {
			stage = state.NextStage.String()
		}
		logger.Warn("recovering stale item",
			"item", state.ID,
			"stage", stage,
		)

		if _, err := j.UpdateOnFailure(state.ID, RecoveryMessage, ""); err != nil {
			return recovered, fmt.Errorf("recovering %s: %w", state.ID, err)
		}
		recovered++
	}

	return recovered, nil
}

// CleanupTempFiles removes temporary files left in the sandbox by
// interrupted atomic writes. Recovery runs before any writer starts, so
// every match is an orphan.
//
// Returns the number of files removed.
func CleanupTempFiles(logger *slog.Logger, sandbox *storage.Sandbox) (int, error) {
	var removed int
	err := sandbox.Walk(".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !storage.IsTempFile(d.Name()) {
			return nil
		}

		if err := sandbox.Remove(relPath); err != nil {
			logger.Warn("failed to remove orphaned temp file",
				"path", relPath,
				"error", err,
			)
			return nil
		}

		logger.Info("removed orphaned temp file",
			"path", relPath,
		)
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("scanning for temp files: %w", err)
	}

	return removed, nil
}
