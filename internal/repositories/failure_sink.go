package repositories

import (
	"github.com/charmbracelet/log"
)

// FailureSinkAdapter implements tasks.FailureSink on top of [RunRepository].
//
// Recording a failure must never fail the run it is recording, so database
// errors are logged and swallowed here.
type FailureSinkAdapter struct {
	repo   *RunRepository
	logger *log.Logger
}

// NewFailureSinkAdapter creates a new FailureSinkAdapter with the given repository
func NewFailureSinkAdapter(repo *RunRepository, logger *log.Logger) *FailureSinkAdapter {
	return &FailureSinkAdapter{repo: repo, logger: logger}
}

// Record persists one per-item failure.
func (a *FailureSinkAdapter) Record(runID, category, item string, err error) {
	if a.repo == nil {
		return
	}
	if dbErr := a.repo.RecordFailure(runID, category, item, err.Error()); dbErr != nil {
		if a.logger != nil {
			a.logger.Warn("failed to persist failure record", "category", category, "item", item, "err", dbErr)
		}
	}
}
